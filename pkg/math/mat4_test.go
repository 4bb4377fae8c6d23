package math

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(5, 10, 15)

	// Translation lives in the last column (indices 12, 13, 14)
	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
	if m.At(0, 3) != 5 {
		t.Errorf("At(0, 3) = %f, want 5", m.At(0, 3))
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30).Mul(Scale(2, 2, 2))
	got := m.TransformPoint(Vec3{1, 2, 3})

	want := Vec3{12, 24, 36}
	if got != want {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(10, 20, 30)
	got := m.TransformDirection(Vec3{0, 0, 1})
	if got != (Vec3{0, 0, 1}) {
		t.Errorf("TransformDirection: got %v, want (0, 0, 1)", got)
	}
}

func TestRotateY90(t *testing.T) {
	m := RotateY(float32(math.Pi / 2))
	result := m.TransformPoint(Vec3{1, 0, 0})

	// After 90 degree Y rotation, (1,0,0) should become approximately (0,0,-1)
	if abs(result.X) > 0.001 || abs(result.Y) > 0.001 || abs(result.Z+1) > 0.001 {
		t.Errorf("RotateY 90: got %v, want (0, 0, -1)", result)
	}
}

func TestTranspose(t *testing.T) {
	m := Translate(1, 2, 3)
	tr := m.Transpose()
	if tr[3] != 1 || tr[7] != 2 || tr[11] != 3 {
		t.Errorf("Transpose: translation not moved to last row: %v", tr)
	}
	if tr.Transpose() != m {
		t.Error("Transpose twice should return the original matrix")
	}
}

func TestPerspective(t *testing.T) {
	m := Perspective(float32(math.Pi/4), 1, 0.1, 100)

	if m[0] == 0 || m[5] == 0 {
		t.Error("Perspective should have non-zero elements")
	}
	if m[15] != 0 {
		t.Errorf("Perspective [15] should be 0, got %f", m[15])
	}
	if m[11] != -1 {
		t.Errorf("Perspective [11] should be -1, got %f", m[11])
	}
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := Vec3{3, 4, 5}
	m := LookAt(eye, Vec3{}, Vec3{0, 1, 0})

	p := m.TransformPoint(eye)
	if p.Length() > 1e-4 {
		t.Errorf("LookAt should map eye to origin, got %v", p)
	}
}

func TestInverse(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
	}{
		{"identity", Identity()},
		{"translate", Translate(1, -2, 3)},
		{"scale", Scale(2, 0.5, 4)},
		{"rotate", RotateY(0.7)},
		{"trs", Translate(5, 6, 7).Mul(RotateY(1.2)).Mul(Scale(3, 3, 0.25))},
		{"tiny scale", Scale(1e-3, 1e-3, 1e-3)},
		{"anisotropic scale", Scale(1e-3, 1e3, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := tt.m.Inverse()
			if !ok {
				t.Fatalf("Inverse reported singular for %v", tt.m)
			}
			if got := tt.m.Mul(inv); !got.ApproxEqual(Identity(), 1e-4) {
				t.Errorf("M * M^-1 = %v, want identity", got)
			}

			// mathgl shares the column-major [16]float32 layout
			want := mgl32.Mat4(tt.m).Inv()
			if !inv.ApproxEqual(Mat4(want), 1e-3) {
				t.Errorf("Inverse = %v, mgl32 = %v", inv, want)
			}
		})
	}
}

func TestInverseSingular(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		m    Mat4
	}{
		{"zero scale", Scale(0, 1, 1)},
		{"zero matrix", Mat4{}},
		{"flattened", Translate(1, 2, 3).Mul(Scale(1, 0, 1))},
		{"collinear columns", Mat4{
			0.1, 0.7, 0.3, 0,
			0.2, -0.4, 0.9, 0,
			0.3, 2.1, 0.9, 0,
			4, 5, 6, 1,
		}},
		{"collinear projective", Mat4{
			1, 2, 3, 4,
			0, 1, 0, 1,
			2, 4, 6, 8.000001,
			0, 0, 1, 1,
		}},
		{"nan", Mat4{nan, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := tt.m.Inverse()
			if ok {
				t.Fatalf("Inverse should report singular for %v", tt.m)
			}
			if inv != Identity() {
				t.Errorf("singular Inverse should return identity, got %v", inv)
			}
		})
	}
}

func TestDeterminant(t *testing.T) {
	if d := Scale(2, 3, 4).Determinant(); d != 24 {
		t.Errorf("Determinant = %f, want 24", d)
	}
	if d := Scale(1, 0, 1).Determinant(); d != 0 {
		t.Errorf("Determinant = %f, want 0", d)
	}
}

func TestApproxEqual(t *testing.T) {
	a := Translate(1, 2, 3)
	b := Translate(1, 2, 3.000001)

	if !a.ApproxEqual(b, 1e-5) {
		t.Error("matrices within tolerance should compare equal")
	}
	if a.ApproxEqual(Translate(1, 2, 3.1), 1e-5) {
		t.Error("matrices outside tolerance should differ")
	}
	nan := a
	nan[0] = float32(math.NaN())
	if a.ApproxEqual(nan, 1) {
		t.Error("NaN element should never compare equal")
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
