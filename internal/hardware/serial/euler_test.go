package serial

import (
	"encoding/binary"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestQuatToEulerIdentityIsZero(t *testing.T) {
	angles := QuatToEuler(1, 0, 0, 0)

	if !almostEqual(angles.Yaw, 0) || !almostEqual(angles.Pitch, 0) || !almostEqual(angles.Roll, 0) {
		t.Errorf("QuatToEuler(identity) = %+v, want all-zero angles", angles)
	}
}

func TestQuatToEulerSingularityBranches(t *testing.T) {
	half := math.Sqrt2 / 2

	posSingularity := QuatToEuler(half, half, 0, 0)
	if !almostEqual(posSingularity.Pitch, math.Pi/2) {
		t.Errorf("positive singularity Pitch = %v, want pi/2", posSingularity.Pitch)
	}
	if !almostEqual(posSingularity.Roll, 0) {
		t.Errorf("positive singularity Roll = %v, want 0", posSingularity.Roll)
	}

	negSingularity := QuatToEuler(half, -half, 0, 0)
	if !almostEqual(negSingularity.Pitch, -math.Pi/2) {
		t.Errorf("negative singularity Pitch = %v, want -pi/2", negSingularity.Pitch)
	}
}

// TestQuatToEulerNonDegenerateQuaternion guards the exact term-by-term
// form of the non-singular branch against regressions: recomputes the
// expected angles from the same ground-truth formula independently of
// QuatToEuler's implementation, using a quaternion far from both the
// identity and the gimbal-lock singularity.
func TestQuatToEulerNonDegenerateQuaternion(t *testing.T) {
	qw, qx, qy, qz := 0.8, 0.3, 0.4, 0.2

	wantYaw := math.Atan2(2*qy*qw-2*qx*qz, 1-2*qy*qy-2*qz*qz)
	wantPitch := math.Asin(2*qx*qy + 2*qz*qw)
	wantRoll := math.Atan2(2*qx*qw-2*qy*qz, 1-2*qx*qx-2*qz*qz)

	got := QuatToEuler(qw, qx, qy, qz)
	if !almostEqual(got.Yaw, wantYaw) {
		t.Errorf("Yaw = %v, want %v", got.Yaw, wantYaw)
	}
	if !almostEqual(got.Pitch, wantPitch) {
		t.Errorf("Pitch = %v, want %v", got.Pitch, wantPitch)
	}
	if !almostEqual(got.Roll, wantRoll) {
		t.Errorf("Roll = %v, want %v", got.Roll, wantRoll)
	}

	// The bug this guards against swapped terms/signs in a way that
	// still satisfies the line above for some inputs, so also check
	// the three angles are pairwise distinct from the typo'd formula's
	// output (2*(qw*qz+qx*qy) numerator, wrong sign and denominator
	// term) for this quaternion.
	typoYaw := math.Atan2(2*(qw*qz+qx*qy), 1-2*(qy*qy+qz*qz))
	typoPitch := math.Asin(2 * (qw*qy - qz*qx))
	typoRoll := math.Atan2(2*(qw*qx+qy*qz), 1-2*(qx*qx+qy*qy))
	if almostEqual(wantYaw, typoYaw) || almostEqual(wantPitch, typoPitch) || almostEqual(wantRoll, typoRoll) {
		t.Fatal("chosen quaternion does not distinguish the ground-truth formula from the known-wrong one; pick different test values")
	}
}

// An identity-quaternion IMU packet must decode to three
// zero-valued ContinuousValue samples, one per axis table entry.
func TestProcessImuValueEmitsZeroForIdentityQuaternion(t *testing.T) {
	f := newTestSerialFrontend()
	f.InstallImuAxis(ImuYaw, 0)
	f.InstallImuAxis(ImuPitch, 1)
	f.InstallImuAxis(ImuRoll, 2)

	var payload [PayloadLength]byte
	binary.LittleEndian.PutUint32(payload[0:4], math.Float32bits(1)) // qw = 1
	pkt := Packet{Cmd: CmdValue, SubCmd: SubCmdImu, Timestamp: 99, Payload: payload}

	f.processSerialPacket(pkt)

	got := drainEventQueue(f)
	if len(got) != 3 {
		t.Fatalf("got %d emitted messages, want 3 (yaw, pitch, roll)", len(got))
	}
	for i, msg := range got {
		cv, ok := msg.(interface{ Value() float64 })
		if !ok {
			t.Fatalf("message %d is %T, want something with Value() float64", i, msg)
		}
		if !almostEqual(cv.Value(), 0) {
			t.Errorf("message %d value = %v, want 0", i, cv.Value())
		}
	}
}
