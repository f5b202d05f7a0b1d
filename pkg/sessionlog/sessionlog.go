// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sessionlog records a driving session to a SQL database: every
// communication status transition and periodic packet counter samples.
// SQLite is the default store; PostgreSQL is used for postgres:// targets.
package sessionlog

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
	"github.com/Thermoquad/dslink/pkg/station"
	"github.com/hashicorp/go-hclog"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultSampleInterval is the minimum time between stored counter samples
const DefaultSampleInterval = time.Second

// Event is one recorded status transition
type Event struct {
	Time   time.Time
	Peer   ds.Peer
	Status ds.CommStatus
}

// Sample is one recorded counter sample
type Sample struct {
	Time          time.Time
	SentRobot     uint64
	ReceivedRobot uint64
	SentFMS       uint64
	ReceivedFMS   uint64
	PacketLoss    float64
}

type dialect struct {
	driver string
	schema string
	// bind returns the placeholder for the nth (1-based) argument
	bind func(n int) string
}

var sqlite3 = dialect{
	driver: "sqlite3",
	schema: `
CREATE TABLE IF NOT EXISTS status_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at_ms INTEGER NOT NULL,
	peer VARCHAR(16) NOT NULL,
	status VARCHAR(16) NOT NULL
);
CREATE TABLE IF NOT EXISTS counter_samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at_ms INTEGER NOT NULL,
	sent_robot INTEGER NOT NULL,
	received_robot INTEGER NOT NULL,
	sent_fms INTEGER NOT NULL,
	received_fms INTEGER NOT NULL,
	packet_loss REAL NOT NULL
);`,
	bind: func(int) string { return "?" },
}

var postgres = dialect{
	driver: "postgres",
	schema: `
CREATE TABLE IF NOT EXISTS status_events (
	id BIGSERIAL PRIMARY KEY,
	at_ms BIGINT NOT NULL,
	peer VARCHAR(16) NOT NULL,
	status VARCHAR(16) NOT NULL
);
CREATE TABLE IF NOT EXISTS counter_samples (
	id BIGSERIAL PRIMARY KEY,
	at_ms BIGINT NOT NULL,
	sent_robot BIGINT NOT NULL,
	received_robot BIGINT NOT NULL,
	sent_fms BIGINT NOT NULL,
	received_fms BIGINT NOT NULL,
	packet_loss DOUBLE PRECISION NOT NULL
);`,
	bind: func(n int) string { return fmt.Sprintf("$%d", n) },
}

// Recorder writes session events. It implements station.Publisher and its
// RecordStatus method fits dsconfig.StatusListener.
type Recorder struct {
	db      *sql.DB
	dialect dialect
	logger  hclog.Logger

	interval   time.Duration
	mu         sync.Mutex
	lastSample time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithLogger sets the logger used for write failures
func WithLogger(l hclog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSampleInterval sets the minimum time between stored samples
func WithSampleInterval(interval time.Duration) Option {
	return func(r *Recorder) {
		r.interval = interval
	}
}

// Open picks the backend from target: postgres:// and postgresql:// URLs
// go to PostgreSQL, anything else is a SQLite file path.
func Open(target string, opts ...Option) (*Recorder, error) {
	if strings.HasPrefix(target, "postgres://") || strings.HasPrefix(target, "postgresql://") {
		return OpenPostgres(target, opts...)
	}
	return OpenSQLite3(target, opts...)
}

// OpenSQLite3 opens or creates a SQLite session database at path
func OpenSQLite3(path string, opts ...Option) (*Recorder, error) {
	return open(sqlite3, path, opts)
}

// OpenPostgres connects to a PostgreSQL database
func OpenPostgres(dsn string, opts ...Option) (*Recorder, error) {
	return open(postgres, dsn, opts)
}

func open(d dialect, source string, opts []Option) (*Recorder, error) {
	db, err := sql.Open(d.driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s session log: %w", d.driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s session log: %w", d.driver, err)
	}
	if d.driver == sqlite3.driver {
		// serialise writers on the single file
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session tables: %w", err)
	}

	r := &Recorder{
		db:       db,
		dialect:  d,
		logger:   hclog.NewNullLogger(),
		interval: DefaultSampleInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("sessionlog")
	return r, nil
}

// Close closes the database
func (r *Recorder) Close() error {
	return r.db.Close()
}

func (r *Recorder) placeholders(count int) string {
	marks := make([]string, count)
	for i := range marks {
		marks[i] = r.dialect.bind(i + 1)
	}
	return strings.Join(marks, ", ")
}

//////////////////////////////////////////////////////////////
// Writes
//////////////////////////////////////////////////////////////

// RecordStatus stores a status transition. Failures are logged, not
// returned, so it can be registered directly as a status listener.
func (r *Recorder) RecordStatus(peer ds.Peer, status ds.CommStatus) {
	if err := r.InsertEvent(Event{Time: time.Now(), Peer: peer, Status: status}); err != nil {
		r.logger.Error("failed to record status", "peer", peer.String(), "error", err)
	}
}

// InsertEvent stores e
func (r *Recorder) InsertEvent(e Event) error {
	query := `INSERT INTO status_events (at_ms, peer, status) VALUES (` + r.placeholders(3) + `);`
	if _, err := r.db.Exec(query, e.Time.UnixMilli(), e.Peer.String(), e.Status.String()); err != nil {
		return fmt.Errorf("failed to insert status event: %w", err)
	}
	return nil
}

// Publish stores a counter sample at most once per sample interval
func (r *Recorder) Publish(s station.Sample) {
	r.mu.Lock()
	if !r.lastSample.IsZero() && s.Time.Sub(r.lastSample) < r.interval {
		r.mu.Unlock()
		return
	}
	r.lastSample = s.Time
	r.mu.Unlock()

	err := r.InsertSample(Sample{
		Time:          s.Time,
		SentRobot:     s.Counters.SentRobot,
		ReceivedRobot: s.Counters.ReceivedRobot,
		SentFMS:       s.Counters.SentFMS,
		ReceivedFMS:   s.Counters.ReceivedFMS,
		PacketLoss:    s.PacketLoss,
	})
	if err != nil {
		r.logger.Error("failed to record sample", "error", err)
	}
}

// InsertSample stores s
func (r *Recorder) InsertSample(s Sample) error {
	query := `INSERT INTO counter_samples (at_ms, sent_robot, received_robot, sent_fms, received_fms, packet_loss) VALUES (` +
		r.placeholders(6) + `);`
	_, err := r.db.Exec(query,
		s.Time.UnixMilli(),
		int64(s.SentRobot),
		int64(s.ReceivedRobot),
		int64(s.SentFMS),
		int64(s.ReceivedFMS),
		s.PacketLoss,
	)
	if err != nil {
		return fmt.Errorf("failed to insert counter sample: %w", err)
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Queries
//////////////////////////////////////////////////////////////

// Recent returns up to n status events, newest first
func (r *Recorder) Recent(n int) ([]Event, error) {
	query := `SELECT at_ms, peer, status FROM status_events ORDER BY id DESC LIMIT ` + r.dialect.bind(1) + `;`
	rows, err := r.db.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query status events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var at int64
		var peer, status string
		if err := rows.Scan(&at, &peer, &status); err != nil {
			return nil, fmt.Errorf("failed to read status event: %w", err)
		}
		events = append(events, Event{
			Time:   time.UnixMilli(at),
			Peer:   parsePeer(peer),
			Status: parseStatus(status),
		})
	}
	return events, rows.Err()
}

// Samples returns up to n counter samples, newest first
func (r *Recorder) Samples(n int) ([]Sample, error) {
	query := `SELECT at_ms, sent_robot, received_robot, sent_fms, received_fms, packet_loss
		FROM counter_samples ORDER BY id DESC LIMIT ` + r.dialect.bind(1) + `;`
	rows, err := r.db.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query counter samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var at, sentRobot, receivedRobot, sentFMS, receivedFMS int64
		var s Sample
		if err := rows.Scan(&at, &sentRobot, &receivedRobot, &sentFMS, &receivedFMS, &s.PacketLoss); err != nil {
			return nil, fmt.Errorf("failed to read counter sample: %w", err)
		}
		s.Time = time.UnixMilli(at)
		s.SentRobot = uint64(sentRobot)
		s.ReceivedRobot = uint64(receivedRobot)
		s.SentFMS = uint64(sentFMS)
		s.ReceivedFMS = uint64(receivedFMS)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func parsePeer(name string) ds.Peer {
	switch name {
	case ds.PeerFMS.String():
		return ds.PeerFMS
	case ds.PeerRadio.String():
		return ds.PeerRadio
	default:
		return ds.PeerRobot
	}
}

func parseStatus(name string) ds.CommStatus {
	if name == ds.CommsWorking.String() {
		return ds.CommsWorking
	}
	return ds.CommsFailing
}
