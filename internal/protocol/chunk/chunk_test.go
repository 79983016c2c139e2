package chunk

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"
	"time"

	"pgregory.net/rapid"
)

// segmentRecorder keeps every Write call as its own segment.
type segmentRecorder struct {
	bytes.Buffer
	sizes []int
}

func (s *segmentRecorder) Write(p []byte) (int, error) {
	s.sizes = append(s.sizes, len(p))
	return s.Buffer.Write(p)
}

func TestSendSplitsImageSizedPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 200000)
	rec := &segmentRecorder{}
	st, err := Send(context.Background(), rec, payload, Policy{MaxPacketSize: 59625})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	want := []int{59625, 59625, 59625, 21125}
	if len(rec.sizes) != len(want) {
		t.Fatalf("segments got=%v want=%v", rec.sizes, want)
	}
	for i := range want {
		if rec.sizes[i] != want[i] {
			t.Fatalf("segment %d got=%d want=%d", i, rec.sizes[i], want[i])
		}
	}
	if st.Segments != 4 || st.Bytes != 200000 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	got, rst, err := Receive(context.Background(), &rec.Buffer, 200000, Policy{MaxPacketSize: 59625})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}
	if rst.Bytes != 200000 {
		t.Fatalf("unexpected receive stats: %+v", rst)
	}
}

func TestReceiveContinuesAfterPartialReads(t *testing.T) {
	payload := []byte("partial reads must not end the payload early")
	r := iotest.OneByteReader(bytes.NewReader(payload))
	got, st, err := Receive(context.Background(), r, len(payload), DefaultPolicy())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}
	if st.Segments != len(payload) {
		t.Fatalf("expected one segment per byte, got %d", st.Segments)
	}
}

func TestReceiveReportsStreamClosed(t *testing.T) {
	_, _, err := Receive(context.Background(), bytes.NewReader([]byte("short")), 10, DefaultPolicy())
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
}

func TestReceiveDataWithEOF(t *testing.T) {
	r := iotest.DataErrReader(bytes.NewReader([]byte("exact")))
	got, _, err := Receive(context.Background(), r, 5, DefaultPolicy())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(got) != "exact" {
		t.Fatalf("unexpected payload: %q", got)
	}
}

func TestReceiveSurfacesReaderErrors(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := Receive(context.Background(), iotest.ErrReader(boom), 4, DefaultPolicy())
	if !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}
}

// stalledReader returns (0, nil) forever.
type stalledReader struct{ calls int }

func (s *stalledReader) Read([]byte) (int, error) {
	s.calls++
	return 0, nil
}

func TestReceiveGivesUpOnStalledReader(t *testing.T) {
	r := &stalledReader{}
	_, st, err := Receive(context.Background(), r, 8, DefaultPolicy())
	if !errors.Is(err, io.ErrNoProgress) {
		t.Fatalf("expected io.ErrNoProgress, got %v", err)
	}
	if st.Bytes != 0 || r.calls != maxEmptyReads {
		t.Fatalf("unexpected stats %+v after %d reads", st, r.calls)
	}
}

func TestReceiveToleratesOccasionalEmptyReads(t *testing.T) {
	src := io.MultiReader(&stallThenEOF{}, bytes.NewReader([]byte("abcd")))
	got, _, err := Receive(context.Background(), src, 4, DefaultPolicy())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(got) != "abcd" {
		t.Fatalf("got %q", got)
	}
}

// stallThenEOF returns (0, nil) a few times before reporting EOF.
type stallThenEOF struct{ n int }

func (s *stallThenEOF) Read([]byte) (int, error) {
	if s.n < 3 {
		s.n++
		return 0, nil
	}
	return 0, io.EOF
}

func TestPolicyValidate(t *testing.T) {
	bad := []Policy{
		{MaxPacketSize: 0},
		{MaxPacketSize: 65536},
		{MaxPacketSize: 10, InterPacketDelay: -time.Millisecond},
	}
	for _, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrInvalidPolicy) {
			t.Fatalf("policy %+v expected ErrInvalidPolicy, got %v", p, err)
		}
	}
	if _, err := Send(context.Background(), io.Discard, []byte("x"), Policy{}); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("send should validate policy, got %v", err)
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestSendPacesSegments(t *testing.T) {
	payload := make([]byte, 40)
	start := time.Now()
	st, err := Send(context.Background(), io.Discard, payload, Policy{MaxPacketSize: 10, InterPacketDelay: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if st.Segments != 4 {
		t.Fatalf("segments got=%d", st.Segments)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("segments were not paced: %v", elapsed)
	}
}

func TestSendHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Send(ctx, io.Discard, make([]byte, 100), Policy{MaxPacketSize: 10, InterPacketDelay: time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPropertyChunkingIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 1, 4096).Draw(rt, "payload")
		l := len(payload)
		size := rapid.SampledFrom([]int{1, max(l-1, 1), l, l + 1, rapid.IntRange(1, 8192).Draw(rt, "size")}).Draw(rt, "maxPacketSize")
		p := Policy{MaxPacketSize: size}

		rec := &segmentRecorder{}
		st, err := Send(context.Background(), rec, payload, p)
		if err != nil {
			rt.Fatalf("send: %v", err)
		}
		if st.Segments != p.Segments(l) {
			rt.Fatalf("segments got=%d want=%d", st.Segments, p.Segments(l))
		}
		got, _, err := Receive(context.Background(), &rec.Buffer, l, p)
		if err != nil {
			rt.Fatalf("receive: %v", err)
		}
		if !bytes.Equal(got, payload) {
			rt.Fatalf("reassembled payload differs for size %d", size)
		}
	})
}
