package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/delivery/internal/domain"
	"github.com/hanko-field/delivery/internal/repositories"
)

func TestParseSnapshotFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "snapshot.yaml"))
	require.NoError(t, err)

	contents, err := Parse(data)
	require.NoError(t, err)

	settings := contents.Snapshot.Settings
	require.Equal(t, "15:00", settings.CutoffTime)
	require.Equal(t, 1.0, settings.ProcessingDays)
	require.Equal(t, 10, settings.MaxVisibleStock)
	require.Equal(t, domain.StackAll, settings.SurchargeStacking)
	require.Equal(t, "10000", settings.FreeShippingThreshold.String())
	require.Equal(t, "Asia/Tokyo", settings.Location.String())

	require.Equal(t, []int{1, 2, 3, 4, 5}, contents.Snapshot.Calendar.Weekdays)
	require.Equal(t, []string{"2024-10-14", "2024-11-04"}, contents.Snapshot.Calendar.Holidays)

	require.Len(t, contents.Snapshot.Methods, 2)
	yamato, ok := contents.Snapshot.MethodByID("yamato")
	require.True(t, ok)
	require.True(t, yamato.SupportsExpress())
	require.Equal(t, "25", yamato.Weight.Max.String())

	require.Len(t, contents.Snapshot.Surcharges, 1)
	require.Equal(t, "okinawa", contents.Snapshot.Surcharges[0].ID)

	require.Len(t, contents.Items, 2)
}

func TestParseRejectsUnknownSections(t *testing.T) {
	_, err := Parse([]byte("shipping:\n  - id: a\n"))
	require.Error(t, err)
}

func TestParseEmptyDocument(t *testing.T) {
	contents, err := Parse(nil)
	require.NoError(t, err)
	require.Empty(t, contents.Snapshot.Methods)
	require.Equal(t, domain.DefaultCalendarSettings().Weekdays, contents.Snapshot.Calendar.Weekdays)
}

func TestRepositoryGetItemLinksParent(t *testing.T) {
	repo, err := NewRepository(FileSource(filepath.Join("testdata", "snapshot.yaml")))
	require.NoError(t, err)

	item, err := repo.GetItem(context.Background(), "seal-15")
	require.NoError(t, err)
	require.Equal(t, "Round seal 15mm", item.Name)
	require.NotNil(t, item.Parent)
	require.Equal(t, []string{"seals"}, item.Parent.Categories)
	require.Equal(t, 3, *item.Availability.StockQuantity)

	_, err = repo.GetItem(context.Background(), "missing")
	require.ErrorIs(t, err, repositories.ErrItemNotFound)
}

func TestRepositoryCachesWithinRefreshInterval(t *testing.T) {
	calls := 0
	source := func(context.Context) ([]byte, error) {
		calls++
		return []byte("settings:\n  cutoff_time: \"12:00\"\n"), nil
	}
	now := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	repo, err := NewRepository(source, WithRefreshInterval(time.Minute), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	_, err = repo.LoadSnapshot(context.Background())
	require.NoError(t, err)
	snapshot, err := repo.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, "12:00", snapshot.Settings.CutoffTime)
	require.Equal(t, 1, calls)

	now = now.Add(2 * time.Minute)
	_, err = repo.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestRepositorySourceFailureIsUnavailable(t *testing.T) {
	boom := errors.New("bucket offline")
	repo, err := NewRepository(func(context.Context) ([]byte, error) { return nil, boom })
	require.NoError(t, err)

	_, err = repo.LoadSnapshot(context.Background())
	require.ErrorIs(t, err, boom)

	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	require.True(t, repoErr.IsUnavailable())

	require.ErrorIs(t, repo.Ping(context.Background()), boom)
}

type fakeObjectReader struct {
	bucket string
	object string
	data   []byte
}

func (f *fakeObjectReader) ReadObject(_ context.Context, bucket, object string) ([]byte, error) {
	f.bucket = bucket
	f.object = object
	return f.data, nil
}

func TestObjectSourceReadsBucket(t *testing.T) {
	reader := &fakeObjectReader{data: []byte("items:\n  - id: sku-1\n    stock_quantity: 0\n")}
	repo, err := NewRepository(ObjectSource(reader, "delivery-config", "prod/snapshot.yaml"))
	require.NoError(t, err)

	item, err := repo.GetItem(context.Background(), "sku-1")
	require.NoError(t, err)
	require.Equal(t, "delivery-config", reader.bucket)
	require.Equal(t, "prod/snapshot.yaml", reader.object)
	require.True(t, item.Availability.Tracked())
	require.Equal(t, 0, *item.Availability.StockQuantity)
}

func TestNewRepositoryRequiresSource(t *testing.T) {
	_, err := NewRepository(nil)
	require.Error(t, err)
}
