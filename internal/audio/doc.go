// Package audio holds the PCM plumbing between capture, the speech services
// and playback: frame concatenation, G.711 decoding, resampling and
// temporary WAV artifacts.
package audio
