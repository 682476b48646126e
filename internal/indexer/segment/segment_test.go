package segment

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/errors"
)

func buildIndex() *index.MemoryIndex {
	mi := index.NewMemoryIndex()
	mi.AddDocument(7, []string{"cat", "dog"})
	mi.AddDocument(9, []string{"cat", "cat", "bird"})
	mi.AddDocument(12, []string{"fish"})
	return mi
}

func TestWriteAndOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mi := buildIndex()

	path, err := NewWriter(dir).Write("title.spdx", mi.Snapshot())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	if got := r.DocumentCount(); got != 3 {
		t.Errorf("DocumentCount = %d, want 3", got)
	}
	if got := r.Terms(); got != 4 {
		t.Errorf("Terms = %d, want 4", got)
	}
	for _, term := range []string{"bird", "cat", "dog", "fish", "absent"} {
		if got, want := r.DocumentFrequency(term), mi.DocumentFrequency(term); got != want {
			t.Errorf("DocumentFrequency(%q) = %d, want %d", term, got, want)
		}
	}
	for _, id := range []uint64{7, 9, 12} {
		if got, want := r.FieldLengthNorm(id), mi.FieldLengthNorm(id); got != want {
			t.Errorf("FieldLengthNorm(%d) = %v, want %v", id, got, want)
		}
	}
	if got := r.FieldLengthNorm(1000); got != index.K1 {
		t.Errorf("FieldLengthNorm(unknown) = %v, want %v", got, index.K1)
	}

	postings, err := r.ReadPostingList(context.Background(), "cat")
	if err != nil {
		t.Fatalf("ReadPostingList: %v", err)
	}
	want := index.PostingList{{DocID: 7, TermFreq: 1}, {DocID: 9, TermFreq: 2}}
	if len(postings) != len(want) {
		t.Fatalf("postings = %+v, want %+v", postings, want)
	}
	for i := range want {
		if postings[i] != want[i] {
			t.Errorf("posting %d = %+v, want %+v", i, postings[i], want[i])
		}
	}

	missing, err := r.ReadPostingList(context.Background(), "absent")
	if err != nil || len(missing) != 0 {
		t.Errorf("ReadPostingList(absent) = %v, %v; want empty, nil", missing, err)
	}
}

func TestWriteEmptySnapshot(t *testing.T) {
	if _, err := NewWriter(t.TempDir()).Write("body.spdx", index.Snapshot{}); err == nil {
		t.Fatal("expected error for empty snapshot")
	}
}

func TestOpenReaderRejectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path, err := NewWriter(dir).Write("body.spdx", buildIndex().Snapshot())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(t *testing.T, b []byte) []byte
	}{
		{
			name: "bad magic",
			mutate: func(t *testing.T, b []byte) []byte {
				b[0] ^= 0xff
				return b
			},
		},
		{
			name: "flipped dictionary byte",
			mutate: func(t *testing.T, b []byte) []byte {
				h := decodeHeader(b[:HeaderSize])
				b[h.DictOffset+1] ^= 0x01
				return b
			},
		},
		{
			name: "flipped norm byte",
			mutate: func(t *testing.T, b []byte) []byte {
				h := decodeHeader(b[:HeaderSize])
				b[h.NormOffset+1] ^= 0x01
				return b
			},
		},
		{
			name: "dictionary size overflows",
			mutate: func(t *testing.T, b []byte) []byte {
				binary.LittleEndian.PutUint64(b[40:48], ^uint64(0))
				return b
			},
		},
		{
			name: "dictionary size past end of file",
			mutate: func(t *testing.T, b []byte) []byte {
				h := decodeHeader(b[:HeaderSize])
				h.DictSize = 1 << 40
				copy(b, encodeHeader(h))
				return b
			},
		},
		{
			name: "postings offset inside header",
			mutate: func(t *testing.T, b []byte) []byte {
				h := decodeHeader(b[:HeaderSize])
				h.PostOffset = 8
				copy(b, encodeHeader(h))
				return b
			},
		},
		{
			name: "negative norm size",
			mutate: func(t *testing.T, b []byte) []byte {
				h := decodeHeader(b[:HeaderSize])
				h.NormSize = -5
				copy(b, encodeHeader(h))
				return b
			},
		},
		{
			name: "bad footer magic",
			mutate: func(t *testing.T, b []byte) []byte {
				b[len(b)-FooterSize+8] ^= 0xff
				return b
			},
		},
		{
			name: "dictionary entry outside postings",
			mutate: func(t *testing.T, b []byte) []byte {
				return rewriteDictionary(t, b, func(dict []DictEntry) {
					dict[0].PostLen = 1 << 30
				})
			},
		},
		{
			name: "dictionary entry negative offset",
			mutate: func(t *testing.T, b []byte) []byte {
				return rewriteDictionary(t, b, func(dict []DictEntry) {
					dict[1].PostOffset = -1
				})
			},
		},
		{
			name: "truncated",
			mutate: func(t *testing.T, b []byte) []byte {
				return b[:HeaderSize/2]
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := tt.mutate(t, append([]byte(nil), data...))
			p := filepath.Join(dir, "broken.spdx")
			if err := os.WriteFile(p, broken, 0644); err != nil {
				t.Fatal(err)
			}
			r, err := OpenReader(p)
			if err == nil {
				r.Close()
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrCorruptSegment) {
				t.Errorf("err = %v, want ErrCorruptSegment", err)
			}
		})
	}
}

// rewriteDictionary re-encodes the dictionary of segment b after edit and
// fixes up the header and checksum so only the entries themselves are wrong.
func rewriteDictionary(t *testing.T, b []byte, edit func([]DictEntry)) []byte {
	t.Helper()
	h := decodeHeader(b[:HeaderSize])
	var dict []DictEntry
	if err := json.Unmarshal(b[h.DictOffset:h.DictOffset+h.DictSize], &dict); err != nil {
		t.Fatal(err)
	}
	edit(dict)
	dictData, err := json.Marshal(dict)
	if err != nil {
		t.Fatal(err)
	}
	norms := b[h.NormOffset : h.NormOffset+h.NormSize]
	footer := append([]byte(nil), b[len(b)-FooterSize:]...)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))

	out := append([]byte(nil), b[:h.DictOffset]...)
	out = append(out, dictData...)
	h.DictSize = int64(len(dictData))
	h.NormOffset = h.DictOffset + h.DictSize
	out = append(out, norms...)
	out = append(out, footer...)
	copy(out, encodeHeader(h))
	return out
}

func TestReadPostingListOutOfRange(t *testing.T) {
	path, err := NewWriter(t.TempDir()).Write("title.spdx", buildIndex().Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.dict[0].PostLen = int(r.header.PostSize) + 1
	_, err = r.ReadPostingList(context.Background(), r.dict[0].Term)
	if !errors.Is(err, ErrCorruptSegment) || !errors.Is(err, apperrors.ErrIndexUnavailable) {
		t.Errorf("err = %v, want ErrCorruptSegment and ErrIndexUnavailable", err)
	}
}

func TestOpenReaderMissingFile(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "nope.spdx"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrCorruptSegment) {
		t.Error("missing file should be retryable, not corrupt")
	}
}

func TestReadPostingListCanceled(t *testing.T) {
	path, err := NewWriter(t.TempDir()).Write("title.spdx", buildIndex().Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.ReadPostingList(ctx, "cat"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
