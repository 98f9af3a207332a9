package pbfextract

import (
	"fmt"
	"strings"
)

// SourceNotFoundError is returned when a place name is not in the extract
// catalog.
type SourceNotFoundError struct {
	Name string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("the required source %s was not found", e.Name)
}

const bbbikeBaseURL = "https://download.bbbike.org/osm/bbbike"

// Cities with extracts available on BBBike.
var bbbikeCities = []string{
	"Aachen", "Aarhus", "Adelaide", "Albuquerque", "Alexandria", "Amsterdam",
	"Antwerpen", "Arnhem", "Auckland", "Augsburg", "Austin", "Baghdad",
	"Baku", "Balaton", "Bamberg", "Bangkok", "Barcelona", "Basel", "Beijing",
	"Beirut", "Berkeley", "Berlin", "Bern", "Bielefeld", "Birmingham",
	"Bochum", "Bogota", "Bombay", "Bonn", "Bordeaux", "Boulder",
	"BrandenburgHavel", "Braunschweig", "Bremen", "Bremerhaven", "Brisbane",
	"Bristol", "Brno", "Bruegge", "Bruessel", "Budapest", "BuenosAires",
	"Cairo", "Calgary", "Cambridge", "CambridgeMa", "Canberra", "CapeTown",
	"Chemnitz", "Chicago", "ClermontFerrand", "Colmar", "Copenhagen", "Cork",
	"Corsica", "Corvallis", "Cottbus", "Cracow", "CraterLake", "Curitiba",
	"Cusco", "Dallas", "Darmstadt", "Davis", "DenHaag", "Denver", "Dessau",
	"Dortmund", "Dresden", "Dublin", "Duesseldorf", "Duisburg", "Edinburgh",
	"Eindhoven", "Emden", "Erfurt", "Erlangen", "Eugene", "Flensburg",
	"FortCollins", "Frankfurt", "FrankfurtOder", "Freiburg", "Gdansk",
	"Genf", "Gent", "Gera", "Glasgow", "Gliwice", "Goerlitz", "Goeteborg",
	"Goettingen", "Graz", "Groningen", "Halifax", "Halle", "Hamburg",
	"Hamm", "Hannover", "Heilbronn", "Helsinki", "Hertogenbosch",
	"Huntsville", "Innsbruck", "Istanbul", "Jena", "Jerusalem",
	"Johannesburg", "Kaiserslautern", "Karlsruhe", "Kassel", "Katowice",
	"Kaunas", "Kiel", "Kiew", "Koblenz", "Koeln", "Konstanz", "LaPaz",
	"LaPlata", "LakeGarda", "Lausanne", "Leeds", "Leipzig", "Lima", "Linz",
	"Lisbon", "Liverpool", "Ljubljana", "Lodz", "London", "Luebeck",
	"Luxemburg", "Lyon", "Maastricht", "Madison", "Madrid", "Magdeburg",
	"Mainz", "Malmoe", "Manchester", "Mannheim", "Marseille", "Melbourne",
	"Memphis", "MexicoCity", "Miami", "Moenchengladbach", "Montevideo",
	"Montpellier", "Montreal", "Moscow", "Muenchen", "Muenster", "NewDelhi",
	"NewOrleans", "NewYorkCity", "Nuernberg", "Oldenburg", "Oranienburg",
	"Orlando", "Oslo", "Osnabrueck", "Ostrava", "Ottawa", "Paderborn",
	"Palma", "PaloAlto", "Paris", "Perth", "Philadelphia", "PhnomPenh",
	"Portland", "PortlandME", "Porto", "PortoAlegre", "Potsdam", "Poznan",
	"Prag", "Providence", "Regensburg", "Riga", "RiodeJaneiro", "Rostock",
	"Rotterdam", "Ruegen", "Saarbruecken", "Sacramento", "Saigon",
	"Salzburg", "SanFrancisco", "SanJose", "SanktPetersburg",
	"SantaBarbara", "SantaCruz", "Santiago", "Sarajewo", "Schwerin",
	"Seattle", "Seoul", "Sheffield", "Singapore", "Sofia", "Stockholm",
	"Stockton", "Strassburg", "Stuttgart", "Sucre", "Sydney", "Szczecin",
	"Tallinn", "Tehran", "Tilburg", "Tokyo", "Toronto", "Toulouse",
	"Trondheim", "Tucson", "Turin", "UlanBator", "Ulm", "Usedom",
	"Utrecht", "Vancouver", "Victoria", "WarenMueritz", "Warsaw",
	"WashingtonDC", "Waterloo", "Wien", "Wroclaw", "Wuerzburg",
	"Wuppertal", "Zagreb", "Zuerich",
}

// BBBikeSource resolves a city name to a stable local filename and the
// download URL of its extract. Matching is case-insensitive. Unknown names
// yield a SourceNotFoundError.
func BBBikeSource(cityName string) (string, string, error) {
	lower := strings.ToLower(cityName)
	for _, city := range bbbikeCities {
		if strings.ToLower(city) != lower {
			continue
		}
		filename := lower + ".osm.pbf"
		// BBBike hosts the NewYorkCity extract under NewYork
		if lower == "newyorkcity" {
			return filename, fmt.Sprintf("%s/NewYork/NewYork.osm.pbf", bbbikeBaseURL), nil
		}
		return filename, fmt.Sprintf("%s/%s/%s.osm.pbf", bbbikeBaseURL, city, city), nil
	}
	return "", "", &SourceNotFoundError{Name: cityName}
}
