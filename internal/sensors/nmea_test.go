package sensors

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// rmc appends the NMEA XOR checksum to a sentence body.
func rmc(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return "$" + body + "*" + strings.ToUpper(hexByte(sum))
}

func hexByte(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

func TestParseRMC(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		want     GPSFix
		wantErr  error
	}{
		{
			name:     "valid fix",
			sentence: rmc("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"),
			want: GPSFix{
				Latitude:   48.1173,
				Longitude:  11.516666666,
				HeadingDeg: 84.4,
				SpeedMPS:   22.4 * knotsToMPS,
			},
		},
		{
			name:     "southern western hemisphere",
			sentence: rmc("GPRMC,081836,A,3751.650,S,14507.360,W,000.0,360.0,130998,011.3,E"),
			want: GPSFix{
				Latitude:   -37.860833333,
				Longitude:  -145.122666666,
				HeadingDeg: 360.0,
			},
		},
		{
			name:     "void fix",
			sentence: rmc("GPRMC,123519,V,,,,,,,230394,,"),
			wantErr:  ErrNoFix,
		},
		{
			name:     "not rmc",
			sentence: rmc("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
			wantErr:  errNotRMC,
		},
		{
			name:     "missing dollar prefix",
			sentence: "GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,,",
			wantErr:  errNotRMC,
		},
	}

	approx := cmpopts.EquateApprox(0, 1e-6)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRMC(tc.sentence)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ParseRMC() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRMC() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got, approx); diff != "" {
				t.Errorf("ParseRMC() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRMCChecksumMismatch(t *testing.T) {
	_, err := ParseRMC("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,,*00")
	if err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("ParseRMC() error = %v, want checksum mismatch", err)
	}
}

type stringPort struct {
	io.Reader
	closed bool
}

func (p *stringPort) Close() error {
	p.closed = true
	return nil
}

func TestSerialGPSReadSkipsNonRMC(t *testing.T) {
	stream := strings.Join([]string{
		rmc("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
		"",
		rmc("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,,"),
	}, "\r\n")

	port := &stringPort{Reader: strings.NewReader(stream)}
	gps := NewSerialGPS("gps_0", port, testClock())

	r, err := gps.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	fix, ok := r.Payload.(GPSFix)
	if !ok {
		t.Fatalf("payload is %T, want GPSFix", r.Payload)
	}
	if math.Abs(fix.HeadingDeg-84.4) > 1e-9 {
		t.Errorf("HeadingDeg = %v, want 84.4", fix.HeadingDeg)
	}
	if r.Kind != KindGPS || r.SensorID != "gps_0" {
		t.Errorf("reading identity = %s/%s, want gps_0/gps", r.SensorID, r.Kind)
	}
}

func TestSerialGPSReadVoidFix(t *testing.T) {
	port := &stringPort{Reader: strings.NewReader(rmc("GPRMC,123519,V,,,,,,,230394,,") + "\r\n")}
	gps := NewSerialGPS("gps_0", port, testClock())

	if _, err := gps.Read(context.Background()); !errors.Is(err, ErrNoFix) {
		t.Fatalf("Read() error = %v, want ErrNoFix", err)
	}
}

func TestSerialGPSReadEOF(t *testing.T) {
	port := &stringPort{Reader: strings.NewReader("")}
	gps := NewSerialGPS("gps_0", port, testClock())

	if _, err := gps.Read(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Read() error = %v, want EOF", err)
	}
}

func TestSerialGPSClose(t *testing.T) {
	port := &stringPort{Reader: strings.NewReader("")}
	gps := NewSerialGPS("gps_0", port, testClock())
	if err := gps.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
}
