// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const archiveSnapshotKey = "catalog:snapshot"

// archivedSnapshot is the persisted form of a snapshot.
type archivedSnapshot struct {
	Version    uint64          `json:"version"`
	SavedAt    time.Time       `json:"saved_at"`
	Records    []ProductRecord `json:"records"`
	Categories []string        `json:"categories"`
}

// Archived is a snapshot loaded back from the archive.
type Archived struct {
	Version    uint64
	SavedAt    time.Time
	Records    []ProductRecord
	Categories []string
}

// Archive persists the last good snapshot in BadgerDB so a restart can serve
// stale data before the feed answers.
type Archive struct {
	db *badger.DB
}

// OpenArchive opens (or creates) an archive at path.
func OpenArchive(path string) (*Archive, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open catalog archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// OpenInMemoryArchive opens a non-persistent archive.
func OpenInMemoryArchive() (*Archive, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory catalog archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// Save stores snap, replacing any previous archive entry.
func (a *Archive) Save(snap *Snapshot) error {
	data, err := json.Marshal(archivedSnapshot{
		Version:    snap.Version(),
		SavedAt:    time.Now().UTC(),
		Records:    snap.Records(),
		Categories: snap.Categories(),
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(archiveSnapshotKey), data)
	})
}

// Load returns the archived snapshot. ok is false when nothing was saved.
func (a *Archive) Load() (archived Archived, ok bool, err error) {
	var stored archivedSnapshot

	err = a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(archiveSnapshotKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Archived{}, false, nil
	}
	if err != nil {
		return Archived{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	return Archived{
		Version:    stored.Version,
		SavedAt:    stored.SavedAt,
		Records:    stored.Records,
		Categories: stored.Categories,
	}, true, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
