package asr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWhisperProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewWhisperProvider("")
	require.Error(t, err)

	var asrErr *Error
	require.ErrorAs(t, err, &asrErr)
	assert.Equal(t, ErrCodeInvalidConfig, asrErr.Code)
}

func TestWhisperProvider_Surface(t *testing.T) {
	p, err := NewWhisperProvider("test-key")
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "openai-whisper", p.Name())
	assert.False(t, p.SupportsWordTimestamps(), "basic transcription mode has no word timings")
	assert.Empty(t, p.SupportedLanguages(), "empty means unrestricted")
}

func TestMode_DefaultBeamSize(t *testing.T) {
	assert.Equal(t, 1, ModeDraft.DefaultBeamSize())
	assert.Equal(t, 5, ModeFinal.DefaultBeamSize())
}

func TestRecognitionConfig_EffectiveBeamSize(t *testing.T) {
	assert.Equal(t, 1, RecognitionConfig{Mode: ModeDraft}.EffectiveBeamSize())
	assert.Equal(t, 5, RecognitionConfig{Mode: ModeFinal}.EffectiveBeamSize())
	assert.Equal(t, 3, RecognitionConfig{Mode: ModeFinal, BeamSize: 3}.EffectiveBeamSize(),
		"an explicit beam width wins over the mode default")
}

func TestIsRawPCM(t *testing.T) {
	assert.True(t, isRawPCM("pcm"))
	assert.True(t, isRawPCM("pcm_f32le"))
	assert.True(t, isRawPCM(""))
	assert.False(t, isRawPCM("opus"))
	assert.False(t, isRawPCM("flac"))
}

// wavField16 reads a little-endian u16 at a byte offset into a WAV header.
func wavField16(t *testing.T, wav []byte, offset int) uint16 {
	t.Helper()
	require.GreaterOrEqual(t, len(wav), offset+2)
	return binary.LittleEndian.Uint16(wav[offset:])
}

func TestWavFromPCM_FloatSegments(t *testing.T) {
	pcm := make([]byte, 480*4) // one 30ms chunk of f32 at 16kHz
	wav, err := wavFromPCM(pcm, AudioConfig{
		SampleRate: 16000, Channels: 1, Encoding: "pcm_f32le", BitsPerSample: 32,
	})
	require.NoError(t, err)

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.EqualValues(t, wavFormatIEEEFloat, wavField16(t, wav, 20),
		"f32 pipeline audio must be tagged IEEE float, not integer PCM")
	assert.EqualValues(t, 32, wavField16(t, wav, 34))
	assert.Len(t, wav, 44+len(pcm))
}

func TestWavFromPCM_Int16Capture(t *testing.T) {
	pcm := make([]byte, 480*2)
	wav, err := wavFromPCM(pcm, AudioConfig{
		SampleRate: 16000, Channels: 1, Encoding: "pcm", BitsPerSample: 16,
	})
	require.NoError(t, err)

	assert.EqualValues(t, wavFormatPCM, wavField16(t, wav, 20))
	assert.EqualValues(t, 16, wavField16(t, wav, 34))
}

func TestWavFromPCM_RejectsMissingRate(t *testing.T) {
	_, err := wavFromPCM([]byte{0, 0}, AudioConfig{Channels: 1})
	assert.Error(t, err)
}
