package segment

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/errors"
)

// ErrCorruptSegment marks a segment that will never open successfully, as
// opposed to a transient I/O failure.
var ErrCorruptSegment = errors.New("corrupt segment")

// Reader serves one field's index from a segment file. The dictionary and
// length norms are held in memory; postings are read from disk on demand.
// A Reader is safe for concurrent use.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	norms    map[uint64]float64
}

var _ index.FieldIndex = (*Reader)(nil)

// OpenReader opens and validates the segment at path.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	fileSize := info.Size()

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("%w: reading header of %s: %v", ErrCorruptSegment, path, err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x in %s", ErrCorruptSegment, header.Magic, path)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d in %s", ErrCorruptSegment, header.Version, path)
	}

	// Sections must lie between the header and the footer, in file order.
	bodyEnd := fileSize - int64(FooterSize)
	for _, sec := range []struct {
		name         string
		offset, size int64
	}{
		{"postings", header.PostOffset, header.PostSize},
		{"dictionary", header.DictOffset, header.DictSize},
		{"norms", header.NormOffset, header.NormSize},
	} {
		if !inRange(sec.offset, sec.size, int64(HeaderSize), bodyEnd) {
			return nil, fmt.Errorf("%w: %s section [%d,+%d) outside file of %d bytes: %s",
				ErrCorruptSegment, sec.name, sec.offset, sec.size, fileSize, path)
		}
	}

	footer := make([]byte, FooterSize)
	footerOffset := header.NormOffset + header.NormSize
	if _, err := f.ReadAt(footer, footerOffset); err != nil {
		return nil, fmt.Errorf("%w: reading footer of %s: %v", ErrCorruptSegment, path, err)
	}
	if binary.LittleEndian.Uint32(footer[8:12]) != MagicBytes {
		return nil, fmt.Errorf("%w: bad footer magic in %s", ErrCorruptSegment, path)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("%w: dictionary checksum mismatch in %s", ErrCorruptSegment, path)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("%w: parsing dictionary: %v", ErrCorruptSegment, err)
	}
	for i, entry := range dict {
		if !inRange(entry.PostOffset, int64(entry.PostLen), 0, header.PostSize) {
			return nil, fmt.Errorf("%w: postings of %q [%d,+%d) outside postings section of %d bytes: %s",
				ErrCorruptSegment, entry.Term, entry.PostOffset, entry.PostLen, header.PostSize, path)
		}
		if i > 0 && dict[i-1].Term >= entry.Term {
			return nil, fmt.Errorf("%w: dictionary not sorted at %q: %s", ErrCorruptSegment, entry.Term, path)
		}
	}

	normBytes := make([]byte, header.NormSize)
	if _, err := f.ReadAt(normBytes, header.NormOffset); err != nil {
		return nil, fmt.Errorf("reading norms: %w", err)
	}
	if crc32.ChecksumIEEE(normBytes) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("%w: norms checksum mismatch in %s", ErrCorruptSegment, path)
	}
	var normList []index.DocNorm
	if err := json.Unmarshal(normBytes, &normList); err != nil {
		return nil, fmt.Errorf("%w: parsing norms: %v", ErrCorruptSegment, err)
	}
	norms := make(map[uint64]float64, len(normList))
	for _, n := range normList {
		norms[n.DocID] = n.Norm
	}

	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		norms:    norms,
	}, nil
}

// inRange reports whether [offset, offset+size) lies within [lo, hi).
func inRange(offset, size, lo, hi int64) bool {
	return offset >= lo && size >= 0 && offset <= hi && size <= hi-offset
}

func (r *Reader) lookup(term string) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

func (r *Reader) DocumentCount() int {
	return int(r.header.DocCount)
}

func (r *Reader) DocumentFrequency(term string) int {
	entry, ok := r.lookup(term)
	if !ok {
		return 0
	}
	return entry.DocFreq
}

// FieldLengthNorm returns the stored norm, or the average-length norm k1 for
// a document the segment has no entry for.
func (r *Reader) FieldLengthNorm(docID uint64) float64 {
	if norm, ok := r.norms[docID]; ok {
		return norm
	}
	return index.K1
}

func (r *Reader) ReadPostingList(ctx context.Context, term string) (index.PostingList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := r.lookup(term)
	if !ok {
		return nil, nil
	}
	if !inRange(entry.PostOffset, int64(entry.PostLen), 0, r.header.PostSize) {
		return nil, fmt.Errorf("%w: %w: postings of %q out of range in %s",
			apperrors.ErrIndexUnavailable, ErrCorruptSegment, term, r.filePath)
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("%w: reading postings for %q from %s: %v", apperrors.ErrIndexUnavailable, term, r.filePath, err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("%w: parsing postings for %q: %v", apperrors.ErrIndexUnavailable, term, err)
	}
	return postings, nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}
