package tlv

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeSample(t *testing.T) []byte {
	t.Helper()
	buf := AppendHeader(nil, Header{Version: FormatVersion, Sequence: 7, TimestampMillis: 1234})
	buf = AppendCounter(buf, 1, 42)
	buf = AppendGaugeInt(buf, 2, -5)
	buf = AppendGaugeFloat(buf, 3, 2.5)
	buf = AppendTimer(buf, 4, 10, 12345)
	return buf
}

func TestRoundTrip(t *testing.T) {
	t.Run("header fields survive encode and decode", func(t *testing.T) {
		buf := encodeSample(t)
		h, rest, err := DecodeHeader(buf)
		require.NoError(t, err)
		require.Equal(t, FormatVersion, h.Version)
		require.Equal(t, uint64(7), h.Sequence)
		require.Equal(t, uint64(1234), h.TimestampMillis)
		require.Equal(t, len(buf)-HeaderSize, len(rest))
	})

	t.Run("entries survive encode and decode", func(t *testing.T) {
		dec, err := NewDecoder(encodeSample(t))
		require.NoError(t, err)

		e, err := dec.Next()
		require.NoError(t, err)
		require.Equal(t, TypeCounter, e.Type)
		require.Equal(t, uint32(1), e.MetricID)
		require.Equal(t, uint64(42), e.Total)

		e, err = dec.Next()
		require.NoError(t, err)
		require.Equal(t, TypeGauge, e.Type)
		require.False(t, e.GaugeIsFloat)
		require.Equal(t, int64(-5), e.GaugeInt)

		e, err = dec.Next()
		require.NoError(t, err)
		require.True(t, e.GaugeIsFloat)
		require.Equal(t, 2.5, e.GaugeFloat)

		e, err = dec.Next()
		require.NoError(t, err)
		require.Equal(t, TypeTimer, e.Type)
		require.Equal(t, uint64(10), e.TimerCount)
		require.Equal(t, uint64(12345), e.TimerSum)

		_, err = dec.Next()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("generic record append matches typed append", func(t *testing.T) {
		typed := AppendCounter(nil, 9, 100)
		generic := AppendRecord(nil, Record{Type: TypeCounter, Value: typed[recordHeaderSize:]})
		require.Equal(t, typed, generic)
	})
}

func TestDecodeTruncated(t *testing.T) {
	buf := encodeSample(t)

	t.Run("truncated header", func(t *testing.T) {
		_, _, err := DecodeHeader(buf[:HeaderSize-1])
		require.ErrorIs(t, err, ErrCorruptRecord)
	})

	t.Run("length field points past available bytes", func(t *testing.T) {
		for cut := HeaderSize + 1; cut < len(buf); cut++ {
			dec, err := NewDecoder(buf[:cut])
			require.NoError(t, err)
			for {
				_, err = dec.Next()
				if err != nil {
					break
				}
			}
			if err != io.EOF {
				require.ErrorIs(t, err, ErrCorruptRecord)
			}
		}
	})
}

func TestDecodeBadFraming(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		buf := encodeSample(t)
		buf[0] = 'X'
		_, err := NewDecoder(buf)
		require.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("unsupported version", func(t *testing.T) {
		buf := encodeSample(t)
		buf[4] = FormatVersion + 1
		_, err := NewDecoder(buf)
		require.ErrorIs(t, err, ErrUnsupportedVersion)
	})
}

func TestUnknownType(t *testing.T) {
	header := AppendHeader(nil, Header{Version: FormatVersion, Sequence: 1})
	unknown := AppendRecord(header, Record{Type: RecordType(250), Value: []byte{1, 2, 3}})
	buf := AppendCounter(unknown, 1, 1)

	t.Run("strict policy aborts", func(t *testing.T) {
		dec, err := NewDecoder(buf)
		require.NoError(t, err)
		_, err = dec.Next()
		require.ErrorIs(t, err, ErrUnknownType)
	})

	t.Run("skip policy continues at the next boundary", func(t *testing.T) {
		dec, err := NewDecoderWithPolicy(buf, PolicySkipUnknown)
		require.NoError(t, err)
		e, err := dec.Next()
		require.NoError(t, err)
		require.Equal(t, TypeCounter, e.Type)
		_, err = dec.Next()
		require.ErrorIs(t, err, io.EOF)
	})
}

func TestDecoderRestart(t *testing.T) {
	buf := encodeSample(t)
	dec, err := NewDecoder(buf)
	require.NoError(t, err)

	first, err := dec.Next()
	require.NoError(t, err)
	off := dec.Offset()

	// Resume from the recorded boundary and expect the remaining entries.
	resumed := NewDecoderAt(buf, off, dec.Header(), PolicyStrict)
	second, err := resumed.Next()
	require.NoError(t, err)
	require.NotEqual(t, first.MetricID, second.MetricID)
	require.Equal(t, TypeGauge, second.Type)
}
