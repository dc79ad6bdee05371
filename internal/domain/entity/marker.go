package entity

import "math"

// HitRadiusFactor множитель радиуса маркера для попадания клика
const HitRadiusFactor = 1.5

// Marker точка на изображении, отмечающая одну трубку
type Marker struct {
	X float64 `json:"x"` // координата X в пикселях изображения
	Y float64 `json:"y"` // координата Y в пикселях изображения
}

// Distance возвращает евклидово расстояние до точки p.
func (m Marker) Distance(p Marker) float64 {
	return math.Hypot(m.X-p.X, m.Y-p.Y)
}

// Markers упорядоченный список маркеров. Идентичность маркера — его индекс.
type Markers []Marker

// HitTest возвращает индекс первого маркера, до которого от точки
// строго меньше HitRadiusFactor*radius, или -1.
func HitTest(markers Markers, point Marker, radius float64) int {
	limit := HitRadiusFactor * radius
	for i, m := range markers {
		if m.Distance(point) < limit {
			return i
		}
	}
	return -1
}

// Toggle удаляет маркер под кликом или добавляет новый в конец.
// Возвращает true, если маркер был удалён.
func (ms *Markers) Toggle(point Marker, radius float64) bool {
	idx := HitTest(*ms, point, radius)
	if idx < 0 {
		*ms = append(*ms, point)
		return false
	}
	*ms = append((*ms)[:idx], (*ms)[idx+1:]...)
	return true
}

// UndoLast удаляет последний маркер. На пустом списке ничего не делает.
func (ms *Markers) UndoLast() bool {
	if len(*ms) == 0 {
		return false
	}
	*ms = (*ms)[:len(*ms)-1]
	return true
}

// Clear удаляет все маркеры
func (ms *Markers) Clear() {
	*ms = Markers{}
}

// Len количество маркеров (итоговое число трубок)
func (ms Markers) Len() int {
	return len(ms)
}

// Clone возвращает независимую копию списка.
func (ms Markers) Clone() Markers {
	out := make(Markers, len(ms))
	copy(out, ms)
	return out
}
