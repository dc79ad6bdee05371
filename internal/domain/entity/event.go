package entity

// EventKind тип пользовательского действия
type EventKind string

const (
	EventUpload   EventKind = "upload"   // загрузка фото
	EventRescan   EventKind = "rescan"   // повторное распознавание
	EventClick    EventKind = "click"    // клик по изображению
	EventUndo     EventKind = "undo"     // удалить последний маркер
	EventClear    EventKind = "clear"    // удалить все маркеры
	EventSettings EventKind = "settings" // изменение настроек
	EventRender   EventKind = "render"   // перерисовка без изменений
)

// Click клик по изображению. Seq отличает повторный клик в ту же точку
// от повторной доставки того же события.
type Click struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Seq int64   `json:"seq"`
}

// Point координата клика как маркер
func (c Click) Point() Marker {
	return Marker{X: c.X, Y: c.Y}
}

// Upload загруженный файл
type Upload struct {
	Name string
	Data []byte
}

// Event одно действие оператора. Заполнено только поле, соответствующее Kind.
type Event struct {
	Kind     EventKind
	Upload   *Upload
	Click    *Click
	Settings *DisplaySettings
}
