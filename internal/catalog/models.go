package catalog

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Group is one annotated event: a span of time with a class code, covering
// a set of images on one or both sonars.
type Group struct {
	GID       int64
	TimeStart time.Time
	Interact  bool
	Mammal    int32
	Fish      int32
	Bird      int32
	Sqlite    string
	UID       uuid.UUID
	Code      string
	Comment   sql.NullString
	TimeEnd   time.Time
	SqliteID  int64
	Split     int32
	HUID      string
}

// Image is a single sonar frame on disk, identified by its FITS filename.
type Image struct {
	Filename string
	UID      uuid.UUID
	HasTrack bool
	GLF      string
	Time     time.Time
	SonarID  int32
	Range    float64
}

// Point is one detection within an image: a bearing/range footprint plus
// the detector's summary statistics.
type Point struct {
	Time        time.Time
	SonarID     int32
	MinBearing  float64
	MaxBearing  float64
	MinRange    float64
	MaxRange    float64
	PeakBearing float64
	PeakRange   float64
	MaxValue    float64
	Occupancy   float64
	ObjSize     float64
}
