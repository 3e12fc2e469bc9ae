// Package influx ships runtime summaries to InfluxDB, falling back to a
// gzip line-protocol file when the server cannot be reached.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/karola3vax/Source2-AntiWallHack/pkg/core"
)

// SummaryMeasurement is the measurement name of runtime summary points.
const SummaryMeasurement = "s2awh_runtime"

// DefaultBucket is used when influx.bucket is empty.
const DefaultBucket = "visibility_summary"

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Bucket       string
	Logger       zerolog.Logger
	BackupPath   string

	mu         sync.Mutex
	backupFile io.Closer
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:    make(map[string]influxdb2_api.WriteAPI),
		Bucket:     DefaultBucket,
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB using the influx.* settings.
func (m *Manager) Connect(ctx context.Context) error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}
	if b := viper.GetString("influx.bucket"); b != "" {
		m.Bucket = b
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	m.IsValid = err == nil && running

	if !m.IsValid {
		m.Logger.Warn().Str("backupPath", m.BackupPath).
			Msg("InfluxDB client failed to initialize, writing summaries to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.CreateWriter()
	m.Logger.Info().Str("bucket", m.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.BackupWriter = gzip.NewWriter(file)
	m.backupFile = file
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := viper.GetString("influx.org")

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.Bucket); err == nil {
		return nil
	}

	m.Logger.Info().Str("bucket", m.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30, // 30 days
	})
	if err != nil {
		m.Logger.Error().Err(err).Str("bucket", m.Bucket).Msg("Error creating bucket")
		return err
	}
	return nil
}

// CreateWriter creates the async write API for the summary bucket.
func (m *Manager) CreateWriter() {
	orgName := viper.GetString("influx.org")
	w := m.Client.WriteAPI(orgName, m.Bucket)
	m.Writers[m.Bucket] = w

	go func(bucket string, errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Bucket, w.Errors())
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// RecordSummary writes s to the summary bucket. Failures are logged.
func (m *Manager) RecordSummary(s core.RuntimeSummary) {
	if err := m.WritePoint(m.Bucket, SummaryPoint(s)); err != nil {
		m.Logger.Error().Err(err).Int("tick", s.Tick).Msg("Failed to record runtime summary")
	}
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// SummaryPoint converts a runtime summary into a line-protocol point.
func SummaryPoint(s core.RuntimeSummary) *influxdb2_write.Point {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2_write.NewPoint(
		SummaryMeasurement,
		map[string]string{"map": s.Map},
		map[string]any{
			"tick":                s.Tick,
			"live_players":        s.LivePlayers,
			"humans":              s.Humans,
			"bots":                s.Bots,
			"viewer_rows":         s.ViewerRows,
			"pairs_per_tick":      s.PairsPerTick,
			"rays_estimate":       s.RaysEstimate,
			"transmit_callbacks":  s.TransmitCallbacks,
			"hidden_entities":     s.HiddenEntities,
			"removal_no_effect":   s.RemovalNoEffect,
			"fallback_checks":     s.FallbackChecks,
			"eval_panics":         s.EvalPanics,
			"hold_refresh":        s.HoldRefresh,
			"hold_keep_alive":     s.HoldKeepAlive,
			"hold_expired":        s.HoldExpired,
			"unknown_total":       s.UnknownTotal,
			"unknown_sticky":      s.UnknownSticky,
			"unknown_hold":        s.UnknownHold,
			"unknown_fail_open":   s.UnknownFailOpen,
			"unknown_fail_closed": s.UnknownFailClosed,
		},
		ts,
	)
}
