//go:build !portaudio

package capture

// DefaultMicrophone returns a silent stand-in when the binary is built
// without PortAudio (`-tags portaudio` enables the hardware device).
func DefaultMicrophone(f Format) Microphone {
	return &SilentMicrophone{Format: f}
}
