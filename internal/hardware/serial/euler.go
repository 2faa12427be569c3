package serial

import "math"

// QuaternionSingularityLimit is the exact threshold from
// serial_frontend_internal.h; values whose qw*qx+qy*qz exceeds it in
// magnitude take the degenerate gimbal-lock branch.
const QuaternionSingularityLimit = 0.4995

// EulerAngles holds the three IMU axes the mapping processor indexes
// by ImuAxis.
type EulerAngles struct {
	Yaw   float64
	Pitch float64
	Roll  float64
}

// QuatToEuler converts a unit quaternion to yaw/pitch/roll, ported
// bit-for-bit from the original's quat_to_euler, including its
// singularity branch.
func QuatToEuler(qw, qx, qy, qz float64) EulerAngles {
	singularity := qw*qx + qy*qz

	if singularity > QuaternionSingularityLimit {
		return EulerAngles{
			Yaw:   2 * math.Atan2(qx, qw),
			Pitch: math.Pi / 2,
			Roll:  0,
		}
	}
	if singularity < -QuaternionSingularityLimit {
		return EulerAngles{
			Yaw:   -2 * math.Atan2(qx, qw),
			Pitch: -math.Pi / 2,
			Roll:  0,
		}
	}

	sqx, sqy, sqz := qx*qx, qy*qy, qz*qz
	return EulerAngles{
		Yaw:   math.Atan2(2*qy*qw-2*qx*qz, 1-2*sqy-2*sqz),
		Pitch: math.Asin(2*qx*qy + 2*qz*qw),
		Roll:  math.Atan2(2*qx*qw-2*qy*qz, 1-2*sqx-2*sqz),
	}
}

// ImuAxis identifies one of the three IMU output channels an axis can
// be routed to a logical sensor index under.
type ImuAxis int

const (
	ImuYaw ImuAxis = iota
	ImuPitch
	ImuRoll
)

func (a EulerAngles) Value(axis ImuAxis) float64 {
	switch axis {
	case ImuYaw:
		return a.Yaw
	case ImuPitch:
		return a.Pitch
	default:
		return a.Roll
	}
}

func decodeQuaternion(payload [PayloadLength]byte) (qw, qx, qy, qz float64) {
	qw = float64(math.Float32frombits(leUint32(payload[0:4])))
	qx = float64(math.Float32frombits(leUint32(payload[4:8])))
	qy = float64(math.Float32frombits(leUint32(payload[8:12])))
	qz = float64(math.Float32frombits(leUint32(payload[12:16])))
	return
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
