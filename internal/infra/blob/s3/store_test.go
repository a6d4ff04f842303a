package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"isatab/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	payload := "Source Name\tSample Name\nsrc1\tsmp1\n"
	info, err := s.Put(ctx, "run/s_1.txt", strings.NewReader(payload), core.PutOptions{ContentType: "text/tab-separated-values"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), info.Size)
	}
	if _, err := s.Put(ctx, "run/s_1.txt", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
	_, rc, err := s.Get(ctx, "run/s_1.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != payload {
		t.Fatalf("unexpected body %q", body)
	}
	list, err := s.List(ctx, "run/")
	if err != nil || len(list) != 1 || list[0].Key != "run/s_1.txt" {
		t.Fatalf("unexpected list %+v %v", list, err)
	}
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	ok, err := s.Delete(ctx, "run/s_1.txt")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "run/s_1.txt"); ok {
		t.Fatalf("second delete should report absence")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestDecodeChunked(t *testing.T) {
	in := []byte("5;chunk-signature=x\r\nhello\r\n6\r\n world\r\n0\r\nx-amz-checksum-crc32:abc\r\n\r\n")
	if got := string(decodeChunked(in)); got != "hello world" {
		t.Fatalf("unexpected decode %q", got)
	}
}
