package bm25

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// snapshot is the on-disk form of an index. Tokenized corpus, raw texts and
// metas are enough to rebuild the derived statistics cheaply on load.
type snapshot struct {
	Corpus [][]string
	Texts  []string
	Metas  []map[string]string
	Params Params
}

func loadSnapshot(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode bm25 snapshot: %w", err)
	}
	if len(s.Corpus) != len(s.Texts) || len(s.Texts) != len(s.Metas) {
		return nil, fmt.Errorf("inconsistent bm25 snapshot: %d/%d/%d entries", len(s.Corpus), len(s.Texts), len(s.Metas))
	}
	if s.Params.K1 == 0 {
		s.Params = Params{K1: defaultK1, B: defaultB}
	}
	return New(s.Corpus, s.Texts, s.Metas, s.Params), nil
}

func saveSnapshot(path string, idx *Index) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	s := snapshot{Corpus: idx.corpus, Texts: idx.texts, Metas: idx.metas, Params: idx.params}
	if err := gob.NewEncoder(f).Encode(&s); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode bm25 snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
