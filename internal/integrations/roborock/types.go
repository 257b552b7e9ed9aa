package roborock

// RRIoT carries the per-account IoT endpoints and keys issued at login.
type RRIoT struct {
	UserID    string `json:"u"`
	Secret    string `json:"s"`
	HashKey   string `json:"h"`
	Key       string `json:"k"`
	Reference struct {
		Region string `json:"r"`
		API    string `json:"a"`
		MQTT   string `json:"m"`
		Log    string `json:"l"`
	} `json:"r"`
}

// UserData is the credential bundle returned by a successful code login.
// It is persisted verbatim in the config entry.
type UserData struct {
	UID         int64  `json:"uid"`
	TokenType   string `json:"tokentype"`
	Token       string `json:"token"`
	RRUID       string `json:"rruid"`
	Region      string `json:"region"`
	CountryCode string `json:"countrycode"`
	Country     string `json:"country"`
	Nickname    string `json:"nickname"`
	RRIoT       RRIoT  `json:"rriot"`
}

// HomeDataProduct describes one product model in the account's home.
type HomeDataProduct struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Category string `json:"category"`
}

// HomeDataDevice describes one physical device in the account's home.
type HomeDataDevice struct {
	DUID            string `json:"duid"`
	Name            string `json:"name"`
	LocalKey        string `json:"localKey"`
	ProductID       string `json:"productId"`
	SerialNumber    string `json:"sn"`
	FirmwareVersion string `json:"fv"`
}

// HomeData is the account's registered devices and products.
type HomeData struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Products []HomeDataProduct `json:"products"`
	Devices  []HomeDataDevice  `json:"devices"`
}

// Product returns the product for a device, matched by product ID.
func (h *HomeData) Product(d HomeDataDevice) HomeDataProduct {
	for _, p := range h.Products {
		if p.ID == d.ProductID {
			return p
		}
	}
	return HomeDataProduct{ID: d.ProductID}
}

// NetworkInfo is the device's LAN details, fetched over the cloud
// transport and used to build the local client.
type NetworkInfo struct {
	IP    string `json:"ip"`
	SSID  string `json:"ssid"`
	MAC   string `json:"mac"`
	BSSID string `json:"bssid"`
	RSSI  int    `json:"rssi"`
}

// Vacuum state codes, as reported in Status.State.
const (
	StateUnknown      = 0
	StateInitiating   = 1
	StateSleeping     = 2
	StateIdle         = 3
	StateCleaning     = 5
	StateReturning    = 6
	StatePaused       = 10
	StateSpotCleaning = 11
	StateError        = 12
	StateCharging     = 8
	StateDocked       = 100
)

var stateNames = map[int]string{
	StateUnknown:      "unknown",
	StateInitiating:   "initiating",
	StateSleeping:     "sleeping",
	StateIdle:         "idle",
	StateCleaning:     "cleaning",
	StateReturning:    "returning_to_dock",
	StatePaused:       "paused",
	StateSpotCleaning: "spot_cleaning",
	StateError:        "error",
	StateCharging:     "charging",
	StateDocked:       "docked",
}

// Status is the device's live state snapshot.
type Status struct {
	MsgVer     int    `json:"msg_ver"`
	State      int    `json:"state"`
	Battery    int    `json:"battery"`
	CleanTime  int    `json:"clean_time"`
	CleanArea  int    `json:"clean_area"`
	ErrorCode  int    `json:"error_code"`
	MapStatus  *int   `json:"map_status,omitempty"`
	FanPower   int    `json:"fan_power"`
	DNDEnabled int    `json:"dnd_enabled"`
	InCleaning int    `json:"in_cleaning"`
	MapName    string `json:"-"`
}

// StateName returns the human-readable state, "unknown" for
// unrecognized codes.
func (s *Status) StateName() string {
	if name, ok := stateNames[s.State]; ok {
		return name
	}
	return "unknown"
}

// CurrentMap derives the selected map slot from the raw map status.
// The device encodes the slot in the upper bits; slot = (status-3)/4
// with flooring, so a status below 3 yields a negative slot rather
// than rounding toward zero. Returns (0, false) when the device did
// not report a map status.
func (s *Status) CurrentMap() (int, bool) {
	if s.MapStatus == nil {
		return 0, false
	}
	n := *s.MapStatus - 3
	slot := n / 4
	if n%4 != 0 && n < 0 {
		slot--
	}
	return slot, true
}

// Consumable work-time limits, in seconds. A consumable is spent when
// its accumulated work time reaches the limit.
const (
	MainBrushLifeSeconds   = 300 * 3600
	SideBrushLifeSeconds   = 200 * 3600
	FilterLifeSeconds      = 150 * 3600
	SensorDirtyLifeSeconds = 30 * 3600
)

// Consumable is the device's accumulated wear counters, in seconds.
type Consumable struct {
	MainBrushWorkTime int `json:"main_brush_work_time"`
	SideBrushWorkTime int `json:"side_brush_work_time"`
	FilterWorkTime    int `json:"filter_work_time"`
	SensorDirtyTime   int `json:"sensor_dirty_time"`
}

// MainBrushLeftHours returns the remaining main-brush life in hours.
func (c *Consumable) MainBrushLeftHours() float64 {
	return remainingHours(MainBrushLifeSeconds, c.MainBrushWorkTime)
}

// SideBrushLeftHours returns the remaining side-brush life in hours.
func (c *Consumable) SideBrushLeftHours() float64 {
	return remainingHours(SideBrushLifeSeconds, c.SideBrushWorkTime)
}

// FilterLeftHours returns the remaining filter life in hours.
func (c *Consumable) FilterLeftHours() float64 {
	return remainingHours(FilterLifeSeconds, c.FilterWorkTime)
}

// SensorLeftHours returns hours until the sensors need cleaning.
func (c *Consumable) SensorLeftHours() float64 {
	return remainingHours(SensorDirtyLifeSeconds, c.SensorDirtyTime)
}

func remainingHours(life, used int) float64 {
	left := life - used
	if left < 0 {
		left = 0
	}
	return float64(left) / 3600
}

// CleanSummary is the device's lifetime cleaning totals.
type CleanSummary struct {
	CleanTime  int     `json:"clean_time"`
	CleanArea  int     `json:"clean_area"`
	CleanCount int     `json:"clean_count"`
	Records    []int64 `json:"records"`
}

// DeviceProp bundles the three property snapshots one refresh fetches.
type DeviceProp struct {
	Status       *Status
	Consumable   *Consumable
	CleanSummary *CleanSummary
}

// Update merges a newer snapshot into p, keeping the previous part
// where the new one is missing.
func (p *DeviceProp) Update(newer *DeviceProp) {
	if newer.Status != nil {
		p.Status = newer.Status
	}
	if newer.Consumable != nil {
		p.Consumable = newer.Consumable
	}
	if newer.CleanSummary != nil {
		p.CleanSummary = newer.CleanSummary
	}
}

// MapInfo names one saved map slot.
type MapInfo struct {
	MapFlag int    `json:"mapFlag"`
	Name    string `json:"name"`
}

// MultiMapsList is the device's saved maps.
type MultiMapsList struct {
	MaxMultiMap  int       `json:"max_multi_map"`
	MapInfo      []MapInfo `json:"map_info"`
	MultiMapMode int       `json:"multi_map_count"`
}
