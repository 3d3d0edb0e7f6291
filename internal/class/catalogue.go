// Package class maps OSM key/value tag pairs to dense class codes and
// normalizes feature names for storage.
package class

import "sync"

// Code is a dense index into the class catalogue. Codes are stable:
// the catalogue is append-only, so a code never changes meaning.
type Code uint16

// None is the class of an entity no catalogue entry matched.
const None Code = 0

// catalogue is the static, ordered list of "key:value" classes. The
// first eight entries are fixed; new classes are appended at the end.
var catalogue = []string{
	"class:none",

	// Generic classes. A later, more specific tag on the same entity
	// overwrites these.
	"building:yes",
	"barrier:yes",
	"office:yes",
	"historic:yes",
	"man_made:yes",
	"tourism:yes",

	"aeroway:aerodrome",
	"aeroway:gate",
	"aeroway:helipad",
	"aeroway:heliport",
	"aeroway:runway",
	"aeroway:taxiway",
	"aeroway:terminal",
	"amenity:atm",
	"amenity:bank",
	"amenity:bar",
	"amenity:bbq",
	"amenity:bench",
	"amenity:bicycle_parking",
	"amenity:bicycle_rental",
	"amenity:biergarten",
	"amenity:bus_station",
	"amenity:cafe",
	"amenity:campground",
	"amenity:car_rental",
	"amenity:car_wash",
	"amenity:casino",
	"amenity:charging_station",
	"amenity:cinema",
	"amenity:clinic",
	"amenity:college",
	"amenity:community_centre",
	"amenity:courthouse",
	"amenity:dentist",
	"amenity:doctors",
	"amenity:drinking_water",
	"amenity:embassy",
	"amenity:fast_food",
	"amenity:ferry_terminal",
	"amenity:fire_station",
	"amenity:fountain",
	"amenity:fuel",
	"amenity:grave_yard",
	"amenity:hospital",
	"amenity:ice_cream",
	"amenity:kindergarten",
	"amenity:library",
	"amenity:marketplace",
	"amenity:parking",
	"amenity:pharmacy",
	"amenity:place_of_worship",
	"amenity:police",
	"amenity:post_box",
	"amenity:post_office",
	"amenity:prison",
	"amenity:pub",
	"amenity:public_building",
	"amenity:ranger_station",
	"amenity:recycling",
	"amenity:restaurant",
	"amenity:school",
	"amenity:shelter",
	"amenity:shower",
	"amenity:taxi",
	"amenity:telephone",
	"amenity:theatre",
	"amenity:toilets",
	"amenity:townhall",
	"amenity:university",
	"amenity:veterinary",
	"amenity:waste_basket",
	"amenity:water_point",
	"barrier:bollard",
	"barrier:city_wall",
	"barrier:fence",
	"barrier:gate",
	"barrier:hedge",
	"barrier:lift_gate",
	"barrier:retaining_wall",
	"barrier:toll_booth",
	"barrier:wall",
	"boundary:administrative",
	"boundary:national_park",
	"boundary:protected_area",
	"building:apartments",
	"building:cabin",
	"building:cathedral",
	"building:chapel",
	"building:church",
	"building:commercial",
	"building:garage",
	"building:greenhouse",
	"building:hospital",
	"building:hotel",
	"building:house",
	"building:hut",
	"building:industrial",
	"building:office",
	"building:residential",
	"building:retail",
	"building:school",
	"building:shed",
	"building:stadium",
	"building:train_station",
	"building:university",
	"building:warehouse",
	"emergency:fire_hydrant",
	"emergency:phone",
	"geological:outcrop",
	"highway:bridleway",
	"highway:bus_stop",
	"highway:crossing",
	"highway:cycleway",
	"highway:footway",
	"highway:living_street",
	"highway:motorway",
	"highway:motorway_junction",
	"highway:motorway_link",
	"highway:path",
	"highway:pedestrian",
	"highway:primary",
	"highway:primary_link",
	"highway:residential",
	"highway:rest_area",
	"highway:road",
	"highway:secondary",
	"highway:secondary_link",
	"highway:service",
	"highway:steps",
	"highway:tertiary",
	"highway:tertiary_link",
	"highway:track",
	"highway:trailhead",
	"highway:traffic_signals",
	"highway:trunk",
	"highway:trunk_link",
	"highway:turning_circle",
	"highway:unclassified",
	"historic:archaeological_site",
	"historic:battlefield",
	"historic:boundary_stone",
	"historic:building",
	"historic:castle",
	"historic:fort",
	"historic:memorial",
	"historic:mine",
	"historic:monument",
	"historic:ruins",
	"historic:wayside_cross",
	"historic:wreck",
	"landuse:allotments",
	"landuse:basin",
	"landuse:cemetery",
	"landuse:commercial",
	"landuse:construction",
	"landuse:farmland",
	"landuse:farmyard",
	"landuse:forest",
	"landuse:grass",
	"landuse:greenfield",
	"landuse:industrial",
	"landuse:landfill",
	"landuse:meadow",
	"landuse:military",
	"landuse:orchard",
	"landuse:quarry",
	"landuse:railway",
	"landuse:recreation_ground",
	"landuse:reservoir",
	"landuse:residential",
	"landuse:retail",
	"landuse:vineyard",
	"leisure:beach_resort",
	"leisure:dog_park",
	"leisure:firepit",
	"leisure:fishing",
	"leisure:garden",
	"leisure:golf_course",
	"leisure:ice_rink",
	"leisure:marina",
	"leisure:nature_reserve",
	"leisure:park",
	"leisure:pitch",
	"leisure:playground",
	"leisure:slipway",
	"leisure:sports_centre",
	"leisure:stadium",
	"leisure:swimming_area",
	"leisure:swimming_pool",
	"leisure:track",
	"leisure:water_park",
	"man_made:adit",
	"man_made:beacon",
	"man_made:breakwater",
	"man_made:bridge",
	"man_made:chimney",
	"man_made:communications_tower",
	"man_made:cutline",
	"man_made:lighthouse",
	"man_made:mineshaft",
	"man_made:observatory",
	"man_made:pier",
	"man_made:pipeline",
	"man_made:reservoir_covered",
	"man_made:silo",
	"man_made:storage_tank",
	"man_made:tower",
	"man_made:wastewater_plant",
	"man_made:water_tank",
	"man_made:water_tower",
	"man_made:water_well",
	"man_made:water_works",
	"man_made:windmill",
	"military:airfield",
	"military:barracks",
	"military:bunker",
	"military:range",
	"natural:bare_rock",
	"natural:bay",
	"natural:beach",
	"natural:cave_entrance",
	"natural:cliff",
	"natural:coastline",
	"natural:fell",
	"natural:glacier",
	"natural:grassland",
	"natural:heath",
	"natural:hot_spring",
	"natural:peak",
	"natural:ridge",
	"natural:saddle",
	"natural:sand",
	"natural:scree",
	"natural:scrub",
	"natural:spring",
	"natural:stone",
	"natural:tree",
	"natural:valley",
	"natural:volcano",
	"natural:water",
	"natural:wetland",
	"natural:wood",
	"office:company",
	"office:government",
	"office:insurance",
	"office:lawyer",
	"office:ngo",
	"place:city",
	"place:county",
	"place:hamlet",
	"place:island",
	"place:islet",
	"place:locality",
	"place:neighbourhood",
	"place:state",
	"place:suburb",
	"place:town",
	"place:village",
	"power:generator",
	"power:line",
	"power:minor_line",
	"power:plant",
	"power:pole",
	"power:substation",
	"power:tower",
	"railway:abandoned",
	"railway:disused",
	"railway:funicular",
	"railway:halt",
	"railway:level_crossing",
	"railway:light_rail",
	"railway:monorail",
	"railway:narrow_gauge",
	"railway:platform",
	"railway:rail",
	"railway:station",
	"railway:subway",
	"railway:tram",
	"shop:bakery",
	"shop:bicycle",
	"shop:books",
	"shop:clothes",
	"shop:convenience",
	"shop:department_store",
	"shop:hairdresser",
	"shop:hardware",
	"shop:laundry",
	"shop:mall",
	"shop:outdoor",
	"shop:supermarket",
	"tourism:alpine_hut",
	"tourism:aquarium",
	"tourism:artwork",
	"tourism:attraction",
	"tourism:camp_site",
	"tourism:caravan_site",
	"tourism:chalet",
	"tourism:gallery",
	"tourism:guest_house",
	"tourism:hostel",
	"tourism:hotel",
	"tourism:information",
	"tourism:motel",
	"tourism:museum",
	"tourism:picnic_site",
	"tourism:theme_park",
	"tourism:viewpoint",
	"tourism:wilderness_hut",
	"tourism:zoo",
	"waterway:canal",
	"waterway:dam",
	"waterway:ditch",
	"waterway:dock",
	"waterway:drain",
	"waterway:river",
	"waterway:riverbank",
	"waterway:stream",
	"waterway:waterfall",
	"waterway:weir",

	// KML overlay designations (appended; see the kml package).
	"kml:wilderness",
	"kml:special_management_area",
	"kml:national_monument",
	"kml:wild_and_scenic_river",
	"kml:proposed_wilderness",
	"kml:proposed_special_management_area",
}

var (
	codeByName map[string]Code
	buildOnce  sync.Once
)

func buildIndex() {
	buildOnce.Do(func() {
		codeByName = make(map[string]Code, len(catalogue))
		for i, name := range catalogue {
			codeByName[name] = Code(i)
		}
	})
}

// Of looks up the class code for a key/value pair. The second return is
// false when the pair is not in the catalogue.
func Of(key, value string) (Code, bool) {
	buildIndex()
	c, ok := codeByName[key+":"+value]
	return c, ok
}

// OfName looks up a full "key:value" class name.
func OfName(name string) (Code, bool) {
	buildIndex()
	c, ok := codeByName[name]
	return c, ok
}

// Name returns the "key:value" string for a code, or "class:none" for
// codes outside the catalogue.
func Name(c Code) string {
	if int(c) >= len(catalogue) {
		return catalogue[None]
	}
	return catalogue[c]
}

// Count returns the catalogue size.
func Count() int { return len(catalogue) }

// IsGeneric reports whether a later specific class may overwrite c.
func IsGeneric(c Code) bool {
	switch Name(c) {
	case "class:none", "building:yes", "barrier:yes", "office:yes",
		"historic:yes", "man_made:yes", "tourism:yes":
		return true
	}
	return false
}
