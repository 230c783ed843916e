package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// testCatalog builds an in-memory mirror of the annotation schema. The
// queries use $n placeholders in first-appearance order so they execute
// unchanged against sqlite.
func testCatalog(t *testing.T) *Catalog {
	t.Helper()

	cat, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	schema := []string{
		`CREATE TABLE groups (
			gid INTEGER, timestart TIMESTAMP, interact BOOLEAN,
			mammal INTEGER, fish INTEGER, bird INTEGER, sqlite TEXT,
			uid TEXT PRIMARY KEY, code TEXT, comment TEXT,
			timeend TIMESTAMP, sqliteid INTEGER, split INTEGER, huid TEXT)`,
		`CREATE TABLE images (
			filename TEXT, uid TEXT PRIMARY KEY, hastrack BOOLEAN, glf TEXT,
			time TIMESTAMP, sonarid INTEGER, "range" REAL)`,
		`CREATE TABLE points (
			time TIMESTAMP, sonarid INTEGER,
			minbearing REAL, maxbearing REAL, minrange REAL, maxrange REAL,
			peakbearing REAL, peakrange REAL, maxvalue REAL,
			occupancy REAL, objsize REAL, group_id TEXT)`,
		`CREATE TABLE groups_images (image_id TEXT, group_id TEXT)`,
	}
	for _, stmt := range schema {
		_, err := cat.Exec(stmt)
		require.NoError(t, err)
	}
	return cat
}

var (
	groupA = uuid.MustParse("7b8e1c60-0fcf-4cb9-9c2a-1fbb2fbff07e")
	groupB = uuid.MustParse("9f1d3a11-5a0e-43a6-9a2f-47de7a3a66b1")
	imgA1  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	imgA2  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	imgA3  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func seedCatalog(t *testing.T, cat *Catalog) {
	t.Helper()

	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)

	groups := []struct {
		gid  int64
		uid  uuid.UUID
		code string
		huid string
	}{
		{1, groupA, "seal", "2023_05_01_A"},
		{2, groupB, "fish", "2023_05_01_B"},
	}
	for i, g := range groups {
		_, err := cat.Exec(`INSERT INTO groups VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			g.gid, base.Add(time.Duration(i)*time.Hour), false, 1, 0, 0,
			"pam.sqlite3", g.uid, g.code, nil,
			base.Add(time.Duration(i)*time.Hour+time.Minute), int64(i), 0, g.huid)
		require.NoError(t, err)
	}

	images := []struct {
		uid     uuid.UUID
		name    string
		sonarID int32
		at      time.Time
	}{
		{imgA1, "2023_05_01_12_00_02_854.fits", 854, base.Add(2 * time.Second)},
		{imgA2, "2023_05_01_12_00_04_854.fits", 854, base.Add(4 * time.Second)},
		{imgA3, "2023_05_01_12_00_02_853.fits", 853, base.Add(2 * time.Second)},
	}
	for _, img := range images {
		_, err := cat.Exec(`INSERT INTO images VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			img.name, img.uid, true, "glf01.glf", img.at, img.sonarID, 55.0)
		require.NoError(t, err)
		_, err = cat.Exec(`INSERT INTO groups_images VALUES ($1, $2)`, img.uid, groupA)
		require.NoError(t, err)
	}

	// Two points on the first frame, none on the second.
	for i := 0; i < 2; i++ {
		_, err := cat.Exec(`INSERT INTO points VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			base.Add(2*time.Second), 854, -0.1, 0.12, 30.0+float64(i), 35.0,
			0.01, 32.0, 90.0, 0.5, 1.2, groupA)
		require.NoError(t, err)
	}
}

func TestGroups(t *testing.T) {
	cat := testCatalog(t)
	seedCatalog(t, cat)

	groups, err := cat.Groups()
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "seal", groups[0].Code)
	assert.Equal(t, "2023_05_01_A", groups[0].HUID)
	assert.Equal(t, groupA, groups[0].UID)
	assert.False(t, groups[0].Comment.Valid)
	assert.True(t, groups[0].TimeEnd.After(groups[0].TimeStart))

	limited, err := cat.GroupsLimit(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, int64(1), limited[0].GID)
}

func TestGroupsSQL(t *testing.T) {
	cat := testCatalog(t)
	seedCatalog(t, cat)

	groups, err := cat.GroupsSQL("SELECT " + groupColumns + " FROM groups WHERE code = 'fish'")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, groupB, groups[0].UID)
}

func TestGroupByHUID(t *testing.T) {
	cat := testCatalog(t)
	seedCatalog(t, cat)

	g, err := cat.GroupByHUID("2023_05_01_B")
	require.NoError(t, err)
	assert.Equal(t, "fish", g.Code)

	_, err = cat.GroupByHUID("nope")
	assert.Error(t, err)
}

func TestGroupImages(t *testing.T) {
	cat := testCatalog(t)
	seedCatalog(t, cat)

	images, err := cat.GroupImages(groupA, 854)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "2023_05_01_12_00_02_854.fits", images[0].Filename)
	assert.Equal(t, "2023_05_01_12_00_04_854.fits", images[1].Filename)
	assert.True(t, images[0].Time.Before(images[1].Time))
	assert.InDelta(t, 55.0, images[0].Range, 1e-9)

	other, err := cat.GroupImages(groupA, 853)
	require.NoError(t, err)
	assert.Len(t, other, 1)

	none, err := cat.GroupImages(groupB, 854)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestImagePoints(t *testing.T) {
	cat := testCatalog(t)
	seedCatalog(t, cat)

	points, err := cat.ImagePoints(groupA, imgA1)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int32(854), points[0].SonarID)
	assert.InDelta(t, -0.1, points[0].MinBearing, 1e-6)
	assert.InDelta(t, 30.0, points[0].MinRange, 1e-6)

	// No points recorded at the second frame's timestamp.
	empty, err := cat.ImagePoints(groupA, imgA2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
