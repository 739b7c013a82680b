package marketplace

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"sjsage522/marketsearch/helpers"
	apperrors "sjsage522/marketsearch/pkg/errors"
)

// city is a supported marketplace region
type city struct {
	Vanity string
	Name   string
	Lat    float64
	Lng    float64
	UF     string
}

var defaultLocation = Location{Vanity: "saopaulo", Lat: -23.55, Lng: -46.6333}

var cities = []city{
	{"riobranco", "Rio Branco", -9.9753, -67.8249, "AC"},
	{"maceio", "Maceió", -9.6498, -35.7089, "AL"},
	{"manaus", "Manaus", -3.119, -60.0217, "AM"},
	{"macapa", "Macapá", 0.0349, -51.0694, "AP"},
	{"salvador", "Salvador", -12.9714, -38.5124, "BA"},
	{"feirasantana", "Feira de Santana", -12.2664, -38.9663, "BA"},
	{"vitoriadaconquista", "Vitória da Conquista", -14.8661, -40.8444, "BA"},
	{"camacari", "Camaçari", -12.6994, -38.3249, "BA"},
	{"ilheus", "Ilhéus", -14.7888, -39.049, "BA"},
	{"fortaleza", "Fortaleza", -3.7172, -38.5433, "CE"},
	{"caucaia", "Caucaia", -3.7249, -38.6534, "CE"},
	{"juazeiro", "Juazeiro do Norte", -7.2132, -39.3151, "CE"},
	{"sobral", "Sobral", -3.6882, -40.3493, "CE"},
	{"brasilia", "Brasília", -15.7975, -47.8919, "DF"},
	{"vitoria", "Vitória", -20.3155, -40.3128, "ES"},
	{"vilavelha", "Vila Velha", -20.3297, -40.2925, "ES"},
	{"serra", "Serra", -20.1297, -40.307, "ES"},
	{"cariacica", "Cariacica", -20.2633, -40.4156, "ES"},
	{"goiania", "Goiânia", -16.6864, -49.2643, "GO"},
	{"aparecidadegoiania", "Aparecida de Goiânia", -16.8234, -49.2437, "GO"},
	{"anapolis", "Anápolis", -16.3281, -48.9528, "GO"},
	{"saoluis", "São Luís", -2.5297, -44.2825, "MA"},
	{"imperatriz", "Imperatriz", -5.5248, -47.4743, "MA"},
	{"belohorizonte", "Belo Horizonte", -19.9191, -43.9386, "MG"},
	{"uberlandia", "Uberlândia", -18.9186, -48.2772, "MG"},
	{"contagem", "Contagem", -19.9317, -44.0536, "MG"},
	{"juizdefora", "Juiz de Fora", -21.7629, -43.3501, "MG"},
	{"betim", "Betim", -19.9678, -44.1982, "MG"},
	{"montesclaros", "Montes Claros", -16.7282, -43.8619, "MG"},
	{"uberaba", "Uberaba", -19.7477, -47.9318, "MG"},
	{"campogrande", "Campo Grande", -20.4697, -54.6201, "MS"},
	{"dourados", "Dourados", -22.2211, -54.8058, "MS"},
	{"cuiaba", "Cuiabá", -15.596, -56.0974, "MT"},
	{"varzeagrande", "Várzea Grande", -15.6467, -56.1324, "MT"},
	{"sinop", "Sinop", -11.8642, -55.5044, "MT"},
	{"belem", "Belém", -1.4558, -48.5024, "PA"},
	{"ananindeua", "Ananindeua", -1.3656, -48.3722, "PA"},
	{"santarem", "Santarém", -2.4386, -54.6983, "PA"},
	{"maraba", "Marabá", -5.3686, -49.1178, "PA"},
	{"joaopessoa", "João Pessoa", -7.115, -34.861, "PB"},
	{"campinagrande", "Campina Grande", -7.2232, -35.8817, "PB"},
	{"recife", "Recife", -8.0476, -34.877, "PE"},
	{"olinda", "Olinda", -8.0089, -34.8553, "PE"},
	{"jaboatao", "Jaboatão dos Guararapes", -8.1128, -35.0029, "PE"},
	{"caruaru", "Caruaru", -8.2843, -35.9761, "PE"},
	{"petrolina", "Petrolina", -9.39, -40.5082, "PE"},
	{"teresina", "Teresina", -5.089, -42.8019, "PI"},
	{"parnaiba", "Parnaíba", -2.9049, -41.7757, "PI"},
	{"curitiba", "Curitiba", -25.4284, -49.2733, "PR"},
	{"londrina", "Londrina", -23.3045, -51.1696, "PR"},
	{"maringa", "Maringá", -23.4273, -51.9375, "PR"},
	{"pontagrossa", "Ponta Grossa", -25.0935, -50.1659, "PR"},
	{"cascavel", "Cascavel", -24.9578, -53.4595, "PR"},
	{"fozdoiguacu", "Foz do Iguaçu", -25.5478, -54.5882, "PR"},
	{"riodejaneiro", "Rio de Janeiro", -22.9068, -43.1729, "RJ"},
	{"niteroi", "Niterói", -22.8833, -43.1036, "RJ"},
	{"saogoncalo", "São Gonçalo", -22.8267, -43.0539, "RJ"},
	{"novaiguacu", "Nova Iguaçu", -22.7597, -43.4516, "RJ"},
	{"duquedecaxias", "Duque de Caxias", -22.7856, -43.3117, "RJ"},
	{"petropolis", "Petrópolis", -22.5044, -43.1786, "RJ"},
	{"camposdosgoytacazes", "Campos dos Goytacazes", -21.7543, -41.3244, "RJ"},
	{"natal", "Natal", -5.7945, -35.211, "RN"},
	{"mossoro", "Mossoró", -5.1878, -37.3443, "RN"},
	{"portovelho", "Porto Velho", -8.7612, -63.9004, "RO"},
	{"boavista", "Boa Vista", 2.8235, -60.6758, "RR"},
	{"portoalegre", "Porto Alegre", -30.0346, -51.2177, "RS"},
	{"caxiasdosul", "Caxias do Sul", -29.1681, -51.1794, "RS"},
	{"pelotas", "Pelotas", -31.7654, -52.3376, "RS"},
	{"canoas", "Canoas", -29.9156, -51.1839, "RS"},
	{"santamaria", "Santa Maria", -29.6842, -53.8069, "RS"},
	{"gravatai", "Gravataí", -29.9442, -51.0211, "RS"},
	{"florianopolis", "Florianópolis", -27.5954, -48.548, "SC"},
	{"joinville", "Joinville", -26.3044, -48.8487, "SC"},
	{"blumenau", "Blumenau", -26.9194, -49.0661, "SC"},
	{"criciuma", "Criciúma", -28.6773, -49.3694, "SC"},
	{"chapeco", "Chapecó", -27.1009, -52.6153, "SC"},
	{"aracaju", "Aracaju", -10.9091, -37.0677, "SE"},
	{"saopaulo", "São Paulo", -23.55, -46.6333, "SP"},
	{"campinas", "Campinas", -22.9099, -47.0626, "SP"},
	{"guarulhos", "Guarulhos", -23.4525, -46.5333, "SP"},
	{"saojosedoscampos", "São José dos Campos", -23.1794, -45.8869, "SP"},
	{"sorocaba", "Sorocaba", -23.5015, -47.4526, "SP"},
	{"santos", "Santos", -23.9608, -46.3336, "SP"},
	{"ribeiraopreto", "Ribeirão Preto", -21.1704, -47.8103, "SP"},
	{"osasco", "Osasco", -23.5329, -46.7919, "SP"},
	{"santoandre", "Santo André", -23.6639, -46.5383, "SP"},
	{"saobernardodocampo", "São Bernardo do Campo", -23.6949, -46.5654, "SP"},
	{"maua", "Mauá", -23.6678, -46.4614, "SP"},
	{"carapicuiba", "Carapicuíba", -23.5224, -46.8351, "SP"},
	{"mogidascruzes", "Mogi das Cruzes", -23.5229, -46.1853, "SP"},
	{"diadema", "Diadema", -23.6867, -46.623, "SP"},
	{"jundiai", "Jundiaí", -23.1857, -46.8978, "SP"},
	{"piracicaba", "Piracicaba", -22.7253, -47.6492, "SP"},
	{"bauru", "Bauru", -22.3246, -49.0761, "SP"},
	{"saojosedoripreto", "São José do Rio Preto", -20.8197, -49.3794, "SP"},
	{"palmas", "Palmas", -10.184, -48.3336, "TO"},
}

var categories = []Category{
	{"vehicles", "Veículos"},
	{"propertyrentals", "Imóveis para Alugar"},
	{"apparel", "Vestuário"},
	{"electronics", "Eletrônicos"},
	{"entertainment", "Entretenimento"},
	{"family", "Família"},
	{"free", "Grátis"},
	{"garden", "Jardim e Ar Livre"},
	{"hobbies", "Hobbies"},
	{"home", "Casa e Jardim"},
	{"homeimprovement", "Materiais de Construção"},
	{"homesales", "Imóveis à Venda"},
	{"instruments", "Instrumentos Musicais"},
	{"office", "Material de Escritório"},
	{"petsupplies", "Pet Shop"},
	{"sports", "Esportes"},
	{"toys", "Brinquedos e Jogos"},
}

var separators = regexp.MustCompile(`[\s\-_]+`)

type cityIndex struct {
	bySlug map[string]*city
	byName map[string]*city
}

var (
	cityIndexOnce sync.Once
	cityIdx       *cityIndex
)

// lookupIndex builds the slug and normalized-name maps exactly once
func lookupIndex() *cityIndex {
	cityIndexOnce.Do(func() {
		idx := &cityIndex{
			bySlug: make(map[string]*city, len(cities)),
			byName: make(map[string]*city, len(cities)),
		}
		for i := range cities {
			c := &cities[i]
			idx.bySlug[c.Vanity] = c
			idx.byName[cityKey(c.Name)] = c
		}
		cityIdx = idx
	})
	return cityIdx
}

func cityKey(s string) string {
	return separators.ReplaceAllString(helpers.StripDiacritics(strings.ToLower(s)), "")
}

// resolveCity accepts a slug or a display name, with or without accents
func resolveCity(input string) (*city, error) {
	idx := lookupIndex()

	exact := separators.ReplaceAllString(strings.ToLower(input), "")
	if c, ok := idx.bySlug[exact]; ok {
		return c, nil
	}

	key := cityKey(input)
	if c, ok := idx.bySlug[key]; ok {
		return c, nil
	}
	if c, ok := idx.byName[key]; ok {
		return c, nil
	}

	var b strings.Builder
	for _, c := range cities {
		fmt.Fprintf(&b, "  %-20s %s (%s)\n", c.Vanity, c.Name, c.UF)
	}
	return nil, apperrors.NewValidation("catalog", fmt.Sprintf(
		"Unknown city %q.\n\nSupported cities:\n%s\nUse -list-cities to see all options.", input, b.String()))
}

// validateCategory fails with the full category list when slug is unknown
func validateCategory(slug string) error {
	for _, c := range categories {
		if c.Slug == slug {
			return nil
		}
	}

	var b strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&b, "  %-22s %s\n", c.Slug, c.Name)
	}
	return apperrors.NewValidation("catalog", fmt.Sprintf(
		"Unknown category %q.\n\nValid categories:\n%s\nUse -list-categories to see all options.", slug, b.String()))
}

// Categories returns the known categories in display order
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Cities returns the supported cities grouped by state
func Cities() []CityInfo {
	out := make([]CityInfo, 0, len(cities))
	for _, c := range cities {
		out = append(out, CityInfo{Slug: c.Vanity, Name: c.Name, RegionCode: c.UF})
	}
	return out
}
