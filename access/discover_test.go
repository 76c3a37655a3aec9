package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voaccess/vocloud/dal"
	"github.com/voaccess/vocloud/provider"
)

func tableRows(t *testing.T, columns []string, values ...map[string]any) []row {
	t.Helper()
	tab := dal.NewTable(columns)
	for _, v := range values {
		tab.Append(v)
	}
	rows := make([]row, tab.Len())
	for i := range rows {
		rows[i] = row{tab: tab.Row(i)}
	}
	return rows
}

func TestDiscoverJSONColumn_ObjectForm(t *testing.T) {
	rows := tableRows(t, []string{"cloud_access"},
		map[string]any{"cloud_access": `{"aws": {"bucket": "b", "key": "k1"}}`},
		map[string]any{},
	)

	aps, err := discoverJSONColumn(rows, Options{}.withDefaults())
	require.NoError(t, err)
	require.Len(t, aps, 2)
	require.Len(t, aps[0], 1)
	assert.Equal(t, "s3://b/k1", aps[0][0].UID())
	assert.Equal(t, provider.AWS, aps[0][0].Provider())
	assert.Empty(t, aps[1], "row without descriptor yields no access points")
}

func TestDiscoverJSONColumn_ListForm(t *testing.T) {
	rows := tableRows(t, []string{"cloud_access"},
		map[string]any{"cloud_access": `{"prem": [{"url": "http://a.org/f"}, {"url": "http://b.org/f"}]}`},
	)

	aps, err := discoverJSONColumn(rows, Options{}.withDefaults())
	require.NoError(t, err)
	require.Len(t, aps[0], 2)
	assert.Equal(t, "http://a.org/f", aps[0][0].UID())
	assert.Equal(t, "http://b.org/f", aps[0][1].UID())
}

func TestDiscoverJSONColumn_UnregisteredKeyIgnored(t *testing.T) {
	rows := tableRows(t, []string{"cloud_access"},
		map[string]any{"cloud_access": `{"gcs": {"bucket": "b", "key": "k"}}`},
	)

	aps, err := discoverJSONColumn(rows, Options{}.withDefaults())
	require.NoError(t, err)
	assert.Empty(t, aps[0])
}

func TestDiscoverJSONColumn_CustomColumn(t *testing.T) {
	rows := tableRows(t, []string{"where"},
		map[string]any{"where": `{"aws": {"uri": "s3://b/k"}}`},
	)

	opts := Options{DescriptorColumn: "where"}.withDefaults()
	aps, err := discoverJSONColumn(rows, opts)
	require.NoError(t, err)
	require.Len(t, aps[0], 1)
	assert.Equal(t, "s3://b/k", aps[0][0].UID())
}

func TestDiscoverJSONColumn_Malformed(t *testing.T) {
	rows := tableRows(t, []string{"cloud_access"},
		map[string]any{"cloud_access": `{"aws": not json`},
	)
	_, err := discoverJSONColumn(rows, Options{}.withDefaults())
	assert.Error(t, err)
}

func TestDiscoverJSONColumn_NonStringColumn(t *testing.T) {
	rows := tableRows(t, []string{"cloud_access"},
		map[string]any{"cloud_access": 42},
	)
	_, err := discoverJSONColumn(rows, Options{}.withDefaults())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDiscoverUCDColumn(t *testing.T) {
	rows := []row{
		{rec: &fakeRecord{ucds: map[string]any{
			"meta.ref.prem": "http://example.org/data.fits",
			"meta.ref.aws":  "s3://bucket/data.fits",
		}}},
		{rec: &fakeRecord{ucds: map[string]any{}}},
	}

	aps, err := discoverUCDColumn(rows, kindRecord, Options{}.withDefaults())
	require.NoError(t, err)
	require.Len(t, aps[0], 2)
	assert.Equal(t, "http://example.org/data.fits", aps[0][0].UID())
	assert.Equal(t, "s3://bucket/data.fits", aps[0][1].UID())
	assert.Empty(t, aps[1])
}

func TestDiscoverUCDColumn_DetachedRowsRejected(t *testing.T) {
	rows := tableRows(t, []string{"a"}, map[string]any{"a": "b"})
	_, err := discoverUCDColumn(rows, kindTableRow, Options{}.withDefaults())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDiscoverUCDColumn_SkipsNonStringValues(t *testing.T) {
	rows := []row{
		{rec: &fakeRecord{ucds: map[string]any{"meta.ref.aws": 7}}},
		{rec: &fakeRecord{ucds: map[string]any{"meta.ref.prem": ""}}},
	}

	aps, err := discoverUCDColumn(rows, kindRecord, Options{}.withDefaults())
	require.NoError(t, err)
	assert.Empty(t, aps[0])
	assert.Empty(t, aps[1])
}

func cloudlinksService() *dal.Service {
	return &dal.Service{
		ID:    "cloudlinks",
		IVOID: DefaultServiceIVOID,
		InputParams: []dal.Param{
			{Name: "ID", Ref: "obs_id"},
			{Name: "provider", Options: []dal.Option{
				{Description: "Amazon S3", Value: "aws:us-east-1"},
				{Description: "Google Cloud", Value: "gcs:us-central1"},
			}},
		},
	}
}

func datalinkResult(rows ...map[string]any) *dal.Table {
	t := dal.NewTable([]string{datalinkIDColumn, datalinkURLColumn})
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func TestDiscoverDatalinks_JoinsRowsPerOption(t *testing.T) {
	set := (&fakeRecordSet{
		records: []*fakeRecord{
			{values: map[string]any{"obs_id": "r0"}},
			{values: map[string]any{"obs_id": "r1"}},
		},
		service: cloudlinksService(),
		results: map[string]*dal.Table{
			"aws:us-east-1": datalinkResult(
				map[string]any{"ID": "r0", "access_url": "s3://b/f0"},
				map[string]any{"ID": "r1", "access_url": "s3://b/f1"},
			),
		},
	}).adopt()

	rows := []row{{rec: set.records[0]}, {rec: set.records[1]}}
	aps, err := discoverDatalinks(context.Background(), rows, kindRecord, set, Options{}.withDefaults())
	require.NoError(t, err)

	require.Len(t, aps[0], 1)
	assert.Equal(t, "s3://b/f0", aps[0][0].UID())
	require.Len(t, aps[1], 1)
	assert.Equal(t, "s3://b/f1", aps[1][0].UID())

	// One batched call for the registered option; the unregistered gcs
	// option never reaches the service.
	require.Len(t, set.calls, 1)
	assert.Equal(t, map[string]string{"provider": "aws:us-east-1"}, set.calls[0])
}

func TestDiscoverDatalinks_SourceParamFallback(t *testing.T) {
	svc := &dal.Service{
		ID: "cloudlinks",
		InputParams: []dal.Param{
			{Name: "ID", Ref: "obs_id"},
			{Name: "source", Options: []dal.Option{{Value: "aws:main"}}},
		},
	}
	set := (&fakeRecordSet{
		records: []*fakeRecord{{values: map[string]any{"obs_id": "r0"}}},
		service: svc,
		results: map[string]*dal.Table{
			"aws:main": datalinkResult(map[string]any{"ID": "r0", "access_url": "s3://b/f0"}),
		},
	}).adopt()

	rows := []row{{rec: set.records[0]}}
	aps, err := discoverDatalinks(context.Background(), rows, kindRecord, set, Options{}.withDefaults())
	require.NoError(t, err)
	require.Len(t, aps[0], 1)

	require.Len(t, set.calls, 1)
	assert.Equal(t, map[string]string{"source": "aws:main"}, set.calls[0])
}

func TestDiscoverDatalinks_LookupByIVOID(t *testing.T) {
	svc := cloudlinksService()
	svc.ID = "some-other-id"
	set := (&fakeRecordSet{
		records: []*fakeRecord{{values: map[string]any{"obs_id": "r0"}}},
		service: svc,
		results: map[string]*dal.Table{
			"aws:us-east-1": datalinkResult(map[string]any{"ID": "r0", "access_url": "s3://b/f0"}),
		},
	}).adopt()

	rows := []row{{rec: set.records[0]}}
	aps, err := discoverDatalinks(context.Background(), rows, kindRecord, set, Options{}.withDefaults())
	require.NoError(t, err)
	require.Len(t, aps[0], 1)
}

func TestDiscoverDatalinks_NoService(t *testing.T) {
	set := (&fakeRecordSet{
		records: []*fakeRecord{{values: map[string]any{"obs_id": "r0"}}},
	}).adopt()

	rows := []row{{rec: set.records[0]}}
	aps, err := discoverDatalinks(context.Background(), rows, kindRecord, set, Options{}.withDefaults())
	require.NoError(t, err)
	assert.Empty(t, aps[0])
	assert.Empty(t, set.calls)
}

func TestDiscoverDatalinks_NoOwningSet(t *testing.T) {
	rows := []row{{rec: &fakeRecord{values: map[string]any{"obs_id": "r0"}}}}
	aps, err := discoverDatalinks(context.Background(), rows, kindRecord, nil, Options{}.withDefaults())
	require.NoError(t, err)
	assert.Empty(t, aps[0])
}

func TestDiscoverDatalinks_NoProviderParam(t *testing.T) {
	svc := &dal.Service{
		ID:          "cloudlinks",
		InputParams: []dal.Param{{Name: "ID", Ref: "obs_id"}},
	}
	set := (&fakeRecordSet{
		records: []*fakeRecord{{values: map[string]any{"obs_id": "r0"}}},
		service: svc,
	}).adopt()

	rows := []row{{rec: set.records[0]}}
	aps, err := discoverDatalinks(context.Background(), rows, kindRecord, set, Options{}.withDefaults())
	require.NoError(t, err)
	assert.Empty(t, aps[0])
	assert.Empty(t, set.calls)
}

func TestDiscoverDatalinks_MixedResultSets(t *testing.T) {
	setA := (&fakeRecordSet{
		records: []*fakeRecord{{values: map[string]any{"obs_id": "a0"}}},
		service: cloudlinksService(),
	}).adopt()
	setB := (&fakeRecordSet{
		records: []*fakeRecord{{values: map[string]any{"obs_id": "b0"}}},
	}).adopt()

	rows := []row{{rec: setA.records[0]}, {rec: setB.records[0]}}
	_, err := discoverDatalinks(context.Background(), rows, kindRecord, setA, Options{}.withDefaults())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDiscoverDatalinks_DetachedRowsRejected(t *testing.T) {
	rows := tableRows(t, []string{"a"}, map[string]any{"a": "b"})
	_, err := discoverDatalinks(context.Background(), rows, kindTableRow, nil, Options{}.withDefaults())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDiscoverDatalinks_ServiceError(t *testing.T) {
	set := (&fakeRecordSet{
		records: []*fakeRecord{{values: map[string]any{"obs_id": "r0"}}},
		service: cloudlinksService(),
		execErr: errors.New("service exploded"),
	}).adopt()

	rows := []row{{rec: set.records[0]}}
	_, err := discoverDatalinks(context.Background(), rows, kindRecord, set, Options{}.withDefaults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service exploded")
}
