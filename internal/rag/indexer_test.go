package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/roadsafe/roadsafe/internal/dataset"
	"github.com/roadsafe/roadsafe/internal/knowledge"
	"github.com/roadsafe/roadsafe/internal/log"
)

// fakeStore records indexed documents in memory.
type fakeStore struct {
	docs   map[string]knowledge.Document
	addErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]knowledge.Document)}
}

func (s *fakeStore) Add(_ context.Context, doc knowledge.Document) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *fakeStore) Search(context.Context, string, ...knowledge.SearchOption) ([]knowledge.Result, error) {
	return nil, nil
}

func (s *fakeStore) Count(context.Context) (int, error) { return len(s.docs), nil }

func (s *fakeStore) Close() error { return nil }

// persistentStore additionally tracks stale deletion, like the pgvector store.
type persistentStore struct {
	fakeStore
	keep []string
}

func (s *persistentStore) DeleteStale(_ context.Context, keep []string) (int, error) {
	s.keep = keep
	return 0, nil
}

func sampleRecords() []dataset.Record {
	return []dataset.Record{
		{
			Serial:  "1",
			Code:    "IRC:35",
			Clause:  "4.2",
			Content: "issue: faded zebra crossing\nintervention: repaint with thermoplastic markings",
		},
		{
			Serial:  "2",
			Code:    "IRC:67",
			Clause:  "14.3",
			Content: "issue: poor night visibility\nintervention: install chevron signs",
		},
	}
}

func TestIndex(t *testing.T) {
	store := newFakeStore()
	records := sampleRecords()

	n, err := Index(context.Background(), store, records, log.NewNop())
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if n != len(records) {
		t.Errorf("Index() = %d, want %d", n, len(records))
	}

	doc, ok := store.docs[records[0].ID()]
	if !ok {
		t.Fatalf("document %s not indexed", records[0].ID())
	}
	if doc.Content != records[0].Content {
		t.Errorf("Content = %q, want %q", doc.Content, records[0].Content)
	}
	if doc.Metadata[MetaCode] != "IRC:35" || doc.Metadata[MetaClause] != "4.2" || doc.Metadata[MetaSerial] != "1" {
		t.Errorf("Metadata = %v", doc.Metadata)
	}
	if doc.CreateAt.IsZero() {
		t.Error("CreateAt is zero")
	}
}

func TestIndexIdempotent(t *testing.T) {
	store := newFakeStore()
	records := sampleRecords()

	for range 2 {
		if _, err := Index(context.Background(), store, records, log.NewNop()); err != nil {
			t.Fatalf("Index() error = %v", err)
		}
	}
	if len(store.docs) != len(records) {
		t.Errorf("indexed %d documents after re-index, want %d", len(store.docs), len(records))
	}
}

func TestIndexAddError(t *testing.T) {
	store := newFakeStore()
	store.addErr = errors.New("connection reset")

	_, err := Index(context.Background(), store, sampleRecords(), log.NewNop())
	if !errors.Is(err, store.addErr) {
		t.Fatalf("Index() error = %v, want wrapped %v", err, store.addErr)
	}
}

func TestIndexDeletesStale(t *testing.T) {
	store := &persistentStore{fakeStore: *newFakeStore()}
	records := sampleRecords()

	if _, err := Index(context.Background(), store, records, log.NewNop()); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if len(store.keep) != len(records) {
		t.Fatalf("keep list has %d entries, want %d", len(store.keep), len(records))
	}
	for i, rec := range records {
		if store.keep[i] != rec.ID() {
			t.Errorf("keep[%d] = %s, want %s", i, store.keep[i], rec.ID())
		}
	}
}
