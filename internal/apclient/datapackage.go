package apclient

const unknownName = "Unknown"

type gameData struct {
	ItemNameToID     map[string]int64 `json:"item_name_to_id"`
	LocationNameToID map[string]int64 `json:"location_name_to_id"`
	Checksum         string           `json:"checksum,omitempty"`
}

// dataPackage holds the name tables of every game in the room.
type dataPackage struct {
	games     map[string]gameData
	items     map[string]map[int64]string // game -> id -> name
	locations map[string]map[int64]string
}

func newDataPackage() *dataPackage {
	return &dataPackage{
		games:     make(map[string]gameData),
		items:     make(map[string]map[int64]string),
		locations: make(map[string]map[int64]string),
	}
}

// merge adds or replaces the tables of the given games.
func (d *dataPackage) merge(games map[string]gameData) {
	for name, g := range games {
		d.games[name] = g
		items := make(map[int64]string, len(g.ItemNameToID))
		for n, id := range g.ItemNameToID {
			items[id] = n
		}
		locations := make(map[int64]string, len(g.LocationNameToID))
		for n, id := range g.LocationNameToID {
			locations[id] = n
		}
		d.items[name] = items
		d.locations[name] = locations
	}
}

// covers reports whether every named game has tables.
func (d *dataPackage) covers(games []string) bool {
	for _, g := range games {
		if _, ok := d.games[g]; !ok {
			return false
		}
	}
	return true
}

func lookupName(tables map[string]map[int64]string, id int64, game string) string {
	if game != "" {
		if name, ok := tables[game][id]; ok {
			return name
		}
		return unknownName
	}
	for _, t := range tables {
		if name, ok := t[id]; ok {
			return name
		}
	}
	return unknownName
}

func (d *dataPackage) itemName(id int64, game string) string {
	return lookupName(d.items, id, game)
}

func (d *dataPackage) locationName(id int64, game string) string {
	return lookupName(d.locations, id, game)
}

func (d *dataPackage) itemID(game, name string) int64 {
	if id, ok := d.games[game].ItemNameToID[name]; ok {
		return id
	}
	return InvalidID
}

func (d *dataPackage) locationID(game, name string) int64 {
	if id, ok := d.games[game].LocationNameToID[name]; ok {
		return id
	}
	return InvalidID
}
