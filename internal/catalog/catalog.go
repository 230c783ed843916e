package catalog

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const groupColumns = "gid, timestart, interact, mammal, fish, bird, sqlite, uid, code, comment, timeend, sqliteid, split, huid"

// Catalog wraps the annotation database connection. All access is
// read-only.
type Catalog struct {
	*sql.DB
}

// DSN builds a PostgreSQL connection string from its parts.
func DSN(user, pass, host, name string) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		url.QueryEscape(user), url.QueryEscape(pass), host, name)
}

// Open connects to the catalog and verifies the connection. The driver is
// "postgres" in production; tests substitute an in-memory database.
func Open(driver, dsn string) (*Catalog, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	return &Catalog{DB: db}, nil
}

// Groups returns every group in the catalog, ordered by start time.
func (c *Catalog) Groups() ([]Group, error) {
	return c.queryGroups("SELECT " + groupColumns + " FROM groups ORDER BY timestart")
}

// GroupsLimit returns at most limit groups, ordered by start time.
func (c *Catalog) GroupsLimit(limit int) ([]Group, error) {
	return c.queryGroups("SELECT "+groupColumns+" FROM groups ORDER BY timestart LIMIT $1", limit)
}

// GroupsSQL runs a caller-supplied filter query. The query must select the
// full group column set.
func (c *Catalog) GroupsSQL(query string) ([]Group, error) {
	return c.queryGroups(query)
}

// GroupByHUID returns the single group with the given human-readable uid.
func (c *Catalog) GroupByHUID(huid string) (Group, error) {
	row := c.QueryRow("SELECT "+groupColumns+" FROM groups WHERE huid = $1", huid)
	g, err := scanGroup(row)
	if err != nil {
		return Group{}, fmt.Errorf("group %s: %w", huid, err)
	}
	return g, nil
}

// GroupImages returns the group's images for one sonar, ordered by time.
func (c *Catalog) GroupImages(groupUID uuid.UUID, sonarID int32) ([]Image, error) {
	rows, err := c.Query(`SELECT i.filename, i.uid, i.hastrack, i.glf, i.time, i.sonarid, i."range"
		FROM images i
		JOIN groups_images gi ON i.uid = gi.image_id
		JOIN groups g ON g.uid = gi.group_id
		WHERE g.uid = $1 AND i.sonarid = $2
		ORDER BY i.time`, groupUID, sonarID)
	if err != nil {
		return nil, fmt.Errorf("group images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Filename, &img.UID, &img.HasTrack, &img.GLF,
			&img.Time, &img.SonarID, &img.Range); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// ImagePoints returns the group's points within one image: those matching
// the image's sonar id and timestamp. May be empty.
func (c *Catalog) ImagePoints(groupUID, imageUID uuid.UUID) ([]Point, error) {
	rows, err := c.Query(`SELECT p.time, p.sonarid, p.minbearing, p.maxbearing, p.minrange, p.maxrange,
		p.peakbearing, p.peakrange, p.maxvalue, p.occupancy, p.objsize
		FROM points p
		JOIN groups g ON g.uid = p.group_id
		JOIN groups_images gi ON gi.group_id = g.uid
		JOIN images i ON i.uid = gi.image_id
		WHERE g.uid = $1 AND i.uid = $2 AND p.sonarid = i.sonarid AND p.time = i.time`,
		groupUID, imageUID)
	if err != nil {
		return nil, fmt.Errorf("image points: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Time, &p.SonarID, &p.MinBearing, &p.MaxBearing,
			&p.MinRange, &p.MaxRange, &p.PeakBearing, &p.PeakRange,
			&p.MaxValue, &p.Occupancy, &p.ObjSize); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (c *Catalog) queryGroups(query string, args ...any) ([]Group, error) {
	rows, err := c.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(s scanner) (Group, error) {
	var g Group
	if err := s.Scan(&g.GID, &g.TimeStart, &g.Interact, &g.Mammal, &g.Fish, &g.Bird,
		&g.Sqlite, &g.UID, &g.Code, &g.Comment, &g.TimeEnd, &g.SqliteID,
		&g.Split, &g.HUID); err != nil {
		return Group{}, fmt.Errorf("scan group: %w", err)
	}
	return g, nil
}
