package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"github.com/autoflux/autoflux/internal/timeutil"
)

// knots to m/s, as reported in the RMC speed-over-ground field.
const knotsToMPS = 0.514444

// ErrNoFix means the receiver reported an invalid (void) position solution.
var ErrNoFix = errors.New("gps: no fix")

// GPSPort is the subset of the serial port the GPS source needs. Tests
// substitute an in-memory implementation.
type GPSPort interface {
	io.Reader
	Close() error
}

// SerialGPS reads NMEA RMC sentences from a serial-attached GNSS receiver
// and exposes them as GPS readings.
type SerialGPS struct {
	SensorID string

	port    GPSPort
	scanner *bufio.Scanner
	clock   timeutil.Clock
}

// OpenSerialGPS opens the receiver's serial device. Baud 9600 is the NMEA
// default when baud is zero.
func OpenSerialGPS(id, device string, baud int, clock timeutil.Clock) (*SerialGPS, error) {
	if baud == 0 {
		baud = 9600
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open gps port %s: %w", device, err)
	}
	return NewSerialGPS(id, port, clock), nil
}

// NewSerialGPS wraps an already-open port. Used directly in tests.
func NewSerialGPS(id string, port GPSPort, clock timeutil.Clock) *SerialGPS {
	return &SerialGPS{
		SensorID: id,
		port:     port,
		scanner:  bufio.NewScanner(port),
		clock:    clock,
	}
}

// ID returns the sensor identifier.
func (g *SerialGPS) ID() string { return g.SensorID }

// Kind returns KindGPS.
func (g *SerialGPS) Kind() Kind { return KindGPS }

// Close releases the serial port.
func (g *SerialGPS) Close() error { return g.port.Close() }

// Read scans sentences until it finds an RMC fix and returns it as a
// reading. Malformed sentences are skipped; a void fix or port EOF is an
// error.
func (g *SerialGPS) Read(ctx context.Context) (Reading, error) {
	for g.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Reading{}, err
		}
		line := strings.TrimSpace(g.scanner.Text())
		if line == "" {
			continue
		}
		fix, err := ParseRMC(line)
		if err != nil {
			if errors.Is(err, errNotRMC) {
				continue
			}
			return Reading{}, err
		}
		return Reading{
			SensorID:   g.SensorID,
			Kind:       KindGPS,
			CapturedAt: g.clock.Now(),
			Payload:    fix,
			Status:     StatusOK,
		}, nil
	}
	if err := g.scanner.Err(); err != nil {
		return Reading{}, fmt.Errorf("gps read: %w", err)
	}
	return Reading{}, fmt.Errorf("gps read: %w", io.EOF)
}

var errNotRMC = errors.New("not an RMC sentence")

// ParseRMC parses a $--RMC sentence into a GPSFix. The checksum is verified
// when present. Field layout:
//
//	$GPRMC,time,status,lat,N/S,lon,E/W,speed_knots,track_deg,date,...*hh
func ParseRMC(sentence string) (GPSFix, error) {
	if !strings.HasPrefix(sentence, "$") {
		return GPSFix{}, errNotRMC
	}

	body := sentence[1:]
	if i := strings.IndexByte(body, '*'); i >= 0 {
		want, err := strconv.ParseUint(body[i+1:], 16, 8)
		if err != nil {
			return GPSFix{}, fmt.Errorf("rmc: bad checksum field %q", body[i+1:])
		}
		var sum byte
		for j := 0; j < i; j++ {
			sum ^= body[j]
		}
		if sum != byte(want) {
			return GPSFix{}, fmt.Errorf("rmc: checksum mismatch: computed %02X want %02X", sum, want)
		}
		body = body[:i]
	}

	fields := strings.Split(body, ",")
	if len(fields) < 9 || !strings.HasSuffix(fields[0], "RMC") {
		return GPSFix{}, errNotRMC
	}

	if fields[2] != "A" {
		return GPSFix{}, ErrNoFix
	}

	lat, err := parseCoordinate(fields[3], fields[4])
	if err != nil {
		return GPSFix{}, fmt.Errorf("rmc: latitude: %w", err)
	}
	lon, err := parseCoordinate(fields[5], fields[6])
	if err != nil {
		return GPSFix{}, fmt.Errorf("rmc: longitude: %w", err)
	}

	var speedKnots, track float64
	if fields[7] != "" {
		if speedKnots, err = strconv.ParseFloat(fields[7], 64); err != nil {
			return GPSFix{}, fmt.Errorf("rmc: speed %q: %w", fields[7], err)
		}
	}
	if fields[8] != "" {
		if track, err = strconv.ParseFloat(fields[8], 64); err != nil {
			return GPSFix{}, fmt.Errorf("rmc: track %q: %w", fields[8], err)
		}
	}

	return GPSFix{
		Latitude:   lat,
		Longitude:  lon,
		HeadingDeg: track,
		SpeedMPS:   speedKnots * knotsToMPS,
	}, nil
}

// parseCoordinate converts an NMEA ddmm.mmmm coordinate plus hemisphere into
// signed decimal degrees.
func parseCoordinate(value, hemi string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	dot := strings.IndexByte(value, '.')
	if dot < 3 {
		return 0, fmt.Errorf("malformed coordinate %q", value)
	}
	deg, err := strconv.ParseFloat(value[:dot-2], 64)
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(value[dot-2:], 64)
	if err != nil {
		return 0, err
	}
	coord := deg + min/60
	switch hemi {
	case "S", "W":
		coord = -coord
	case "N", "E", "":
	default:
		return 0, fmt.Errorf("unknown hemisphere %q", hemi)
	}
	return coord, nil
}
