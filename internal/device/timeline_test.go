package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/influxdb"
	"github.com/baes-monitor/baes-core/internal/location"
	"github.com/baes-monitor/baes-core/internal/testutil"
)

func boolPtr(b bool) *bool       { return &b }
func floatPtr(f float64) *float64 { return &f }

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newEngine(t *testing.T) (*Engine, *sql.DB, *fixedClock) {
	t.Helper()
	db := testutil.OpenDB(t)
	clock := &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	e := NewEngine(db)
	e.now = clock.now
	return e, db, clock
}

type recordingTelemetry struct{ samples []influxdb.StatusSample }

func (r *recordingTelemetry) WriteStatus(s influxdb.StatusSample) { r.samples = append(r.samples, s) }

type memoryCache struct {
	entries     map[int64]Summary
	invalidated []int64
	flushed     int
}

func newMemoryCache() *memoryCache { return &memoryCache{entries: map[int64]Summary{}} }

func (m *memoryCache) Load(_ context.Context, siteID int64, dst any) (bool, error) {
	s, ok := m.entries[siteID]
	if ok {
		*dst.(*Summary) = s
	}
	return ok, nil
}

func (m *memoryCache) Store(_ context.Context, siteID int64, v any) error {
	m.entries[siteID] = *v.(*Summary)
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, siteID int64) error {
	m.invalidated = append(m.invalidated, siteID)
	delete(m.entries, siteID)
	return nil
}

func (m *memoryCache) InvalidateAll(context.Context) error {
	m.flushed++
	m.entries = map[int64]Summary{}
	return nil
}

func TestIngest_AutoProvisions(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	tel := &recordingTelemetry{}
	e.SetTelemetry(tel)

	res, err := e.Ingest(ctx, IngestRequest{DeviceID: 4242, ErrorCode: CodeBattery, Temperature: floatPtr(21.5)})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !res.Created {
		t.Error("Created = false for unknown device")
	}
	if res.Device.Name == nil || *res.Device.Name != "BAES-4242" {
		t.Errorf("device name = %v, want BAES-4242", res.Device.Name)
	}
	if res.Status.IsSolved || res.Status.Vibration {
		t.Error("solved and vibration should default to false")
	}
	if res.Status.Temperature == nil || *res.Status.Temperature != 21.5 {
		t.Errorf("Temperature = %v", res.Status.Temperature)
	}

	dev, err := NewSQLiteRepository(db).GetByID(ctx, 4242)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if dev.FloorID != nil || dev.Position != (Position{}) {
		t.Errorf("auto-provisioned device = %+v, want unplaced", dev)
	}

	res, err = e.Ingest(ctx, IngestRequest{DeviceID: 4242, ErrorCode: CodeOK})
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if res.Created {
		t.Error("Created = true for known device")
	}
	if n := testutil.Count(t, db, "devices", ""); n != 1 {
		t.Errorf("devices = %d, want 1", n)
	}
	if n := testutil.Count(t, db, "statuses", "device_id = ?", 4242); n != 2 {
		t.Errorf("statuses = %d, want 2", n)
	}
	if len(tel.samples) != 2 || tel.samples[0].ErrorCode != CodeBattery {
		t.Errorf("telemetry samples = %+v", tel.samples)
	}
}

func TestIngest_NameAndLabel(t *testing.T) {
	e, _, _ := newEngine(t)

	res, err := e.Ingest(context.Background(), IngestRequest{
		DeviceID: 7, ErrorCode: CodeOK, Name: strPtr("Hall"), Label: strPtr("East"),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if *res.Device.Name != "Hall" || *res.Device.Label != "East" {
		t.Errorf("device = %+v", res.Device)
	}
}

func TestIngest_InvalidID(t *testing.T) {
	e, db, _ := newEngine(t)
	if _, err := e.Ingest(context.Background(), IngestRequest{DeviceID: 0}); !errors.Is(err, fault.ErrValidation) {
		t.Errorf("Ingest() error = %v, want validation", err)
	}
	if n := testutil.Count(t, db, "devices", ""); n != 0 {
		t.Errorf("devices = %d, want 0", n)
	}
}

func TestAcknowledge_ActorPrecedence(t *testing.T) {
	e, db, clock := newEngine(t)
	ctx := context.Background()

	session := testutil.SeedUser(t, db, "session-user")
	explicit := testutil.SeedUser(t, db, "body-user")

	tests := []struct {
		name  string
		actor Actor
		want  *int64
	}{
		{"session wins", Actor{SessionUserID: &session, ExplicitUserID: &explicit}, &session},
		{"explicit fallback", Actor{ExplicitUserID: &explicit}, &explicit},
		{"unknown explicit", Actor{ExplicitUserID: int64Ptr(999)}, nil},
		{"nobody", Actor{}, nil},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Ingest(ctx, IngestRequest{DeviceID: int64(i + 1), ErrorCode: CodeBattery})
			if err != nil {
				t.Fatalf("Ingest() error = %v", err)
			}
			clock.advance(time.Minute)

			st, err := e.Acknowledge(ctx, res.Status.ID, true, tt.actor)
			if err != nil {
				t.Fatalf("Acknowledge() error = %v", err)
			}
			if !st.IsSolved {
				t.Error("IsSolved = false")
			}
			if st.AcknowledgedAt == nil || !st.AcknowledgedAt.Equal(clock.t) {
				t.Errorf("AcknowledgedAt = %v, want %v", st.AcknowledgedAt, clock.t)
			}
			switch {
			case tt.want == nil && st.AcknowledgedByUserID != nil:
				t.Errorf("AcknowledgedByUserID = %d, want nil", *st.AcknowledgedByUserID)
			case tt.want != nil && (st.AcknowledgedByUserID == nil || *st.AcknowledgedByUserID != *tt.want):
				t.Errorf("AcknowledgedByUserID = %v, want %d", st.AcknowledgedByUserID, *tt.want)
			}
		})
	}
}

func TestAcknowledge_UnchangedFlagKeepsFields(t *testing.T) {
	e, db, clock := newEngine(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "alice")
	other := testutil.SeedUser(t, db, "bob")

	res, err := e.Ingest(ctx, IngestRequest{DeviceID: 1, ErrorCode: CodeBattery})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	first, err := e.Acknowledge(ctx, res.Status.ID, true, Actor{SessionUserID: &user})
	if err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	clock.advance(time.Hour)

	again, err := e.Acknowledge(ctx, res.Status.ID, true, Actor{SessionUserID: &other})
	if err != nil {
		t.Fatalf("second Acknowledge() error = %v", err)
	}
	if *again.AcknowledgedByUserID != user || !again.AcknowledgedAt.Equal(*first.AcknowledgedAt) {
		t.Errorf("repeat acknowledgment changed fields: %+v", again)
	}

	if _, err := e.Acknowledge(ctx, 999, true, Actor{}); !errors.Is(err, ErrStatusNotFound) {
		t.Errorf("Acknowledge(missing) error = %v", err)
	}
}

func TestUpdateMeasurements(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "alice")
	testutil.SeedDevice(t, db, 1, 0)
	first := testutil.SeedStatus(t, db, 1, CodeBattery, "2026-03-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 1, CodeBattery, "2026-03-01T11:00:00.000Z")

	if _, err := e.Acknowledge(ctx, first, true, Actor{SessionUserID: &user}); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}

	st, err := e.UpdateMeasurements(ctx, 1, CodeBattery, MeasurementPatch{
		Solved: boolPtr(false), SetTemperature: true, Temperature: floatPtr(30), Vibration: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("UpdateMeasurements() error = %v", err)
	}
	if st.ID != first {
		t.Errorf("patched status %d, want first matching %d", st.ID, first)
	}
	if st.IsSolved || !st.Vibration || st.Temperature == nil || *st.Temperature != 30 {
		t.Errorf("patched status = %+v", st)
	}
	if st.AcknowledgedByUserID == nil || *st.AcknowledgedByUserID != user {
		t.Error("acknowledgment fields must survive a measurement update")
	}

	if _, err := e.UpdateMeasurements(ctx, 1, CodeConnection, MeasurementPatch{}); !errors.Is(err, ErrStatusNotFound) {
		t.Errorf("UpdateMeasurements(no match) error = %v", err)
	}
	if _, err := e.UpdateMeasurements(ctx, 2, CodeBattery, MeasurementPatch{}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateMeasurements(missing device) error = %v", err)
	}
}

func TestLatest(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()

	if _, err := e.Latest(ctx, 1); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Latest(missing) error = %v", err)
	}

	testutil.SeedDevice(t, db, 1, 0)
	st, err := e.Latest(ctx, 1)
	if err != nil || st != nil {
		t.Errorf("Latest(no statuses) = %+v, %v; want nil, nil", st, err)
	}

	testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T10:00:00.000Z")
	tie := testutil.SeedStatus(t, db, 1, CodeBattery, "2026-03-01T10:00:00.000Z")
	st, err = e.Latest(ctx, 1)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if st.ID != tie {
		t.Errorf("Latest().ID = %d, want highest id %d", st.ID, tie)
	}
}

func TestSummaryBySite(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()

	if _, err := e.SummaryBySite(ctx, 1); !errors.Is(err, location.ErrSiteNotFound) {
		t.Errorf("SummaryBySite(missing) error = %v", err)
	}

	site := testutil.SeedSite(t, db, "Paris")
	floor := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, site, "A"), "1")
	for id := int64(1); id <= 5; id++ {
		testutil.SeedDevice(t, db, id, floor)
	}
	testutil.SeedDevice(t, db, 6, 0)
	testutil.SeedStatus(t, db, 1, CodeConnection, "2026-03-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 2, CodeOK, "2026-03-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 2, CodeBattery, "2026-03-01T11:00:00.000Z")
	testutil.SeedStatus(t, db, 3, CodeOK, "2026-03-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 4, 9, "2026-03-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 6, CodeConnection, "2026-03-01T10:00:00.000Z")

	got, err := e.SummaryBySite(ctx, site)
	if err != nil {
		t.Fatalf("SummaryBySite() error = %v", err)
	}
	want := Summary{ConnectionErrors: 1, BatteryErrors: 1, OK: 1, Unknown: 2}
	if *got != want {
		t.Errorf("SummaryBySite() = %+v, want %+v", *got, want)
	}
}

func TestSummaryBySite_Cache(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	cache := newMemoryCache()
	e.SetSummaryCache(cache)

	site := testutil.SeedSite(t, db, "Paris")
	floor := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, site, "A"), "1")
	testutil.SeedDevice(t, db, 1, floor)

	if _, err := e.SummaryBySite(ctx, site); err != nil {
		t.Fatalf("SummaryBySite() error = %v", err)
	}
	if _, ok := cache.entries[site]; !ok {
		t.Fatal("summary not stored in cache")
	}

	if _, err := e.Ingest(ctx, IngestRequest{DeviceID: 1, ErrorCode: CodeOK}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != site {
		t.Errorf("invalidated = %v, want [%d]", cache.invalidated, site)
	}

	got, err := e.SummaryBySite(ctx, site)
	if err != nil {
		t.Fatalf("SummaryBySite() error = %v", err)
	}
	if got.OK != 1 {
		t.Errorf("summary after ingest = %+v, want one OK", got)
	}

	e.InvalidateSummaries(ctx)
	if cache.flushed != 1 || len(cache.entries) != 0 {
		t.Errorf("InvalidateSummaries() left %d entries", len(cache.entries))
	}
}

func TestDeleteStatus_Engine(t *testing.T) {
	e, db, _ := newEngine(t)
	ctx := context.Background()
	testutil.SeedDevice(t, db, 1, 0)
	id := testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T10:00:00.000Z")

	if err := e.DeleteStatus(ctx, id); err != nil {
		t.Fatalf("DeleteStatus() error = %v", err)
	}
	if err := e.DeleteStatus(ctx, id); !errors.Is(err, ErrStatusNotFound) {
		t.Errorf("DeleteStatus(again) error = %v", err)
	}
}
