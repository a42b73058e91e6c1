package textnorm

// DefaultStopPhrases lists legislative boilerplate removed before vectorization.
// Phrases are removed only as whole words, so "pec" leaves "especial" intact;
// write entries as complete words, not fragments. Longer phrases must precede
// phrases they contain.
var DefaultStopPhrases = []string{
	// bureaucratic actions
	"da outras providencias", "dispoe sobre", "trata de", "institui o", "institui a",
	"cria o", "cria a", "estabelece", "normas gerais", "providencias",
	"para os fins", "nos termos", "com a finalidade de", "visando a", "a fim de",
	"para dispor sobre", "para prever", "para estender", "para aperfeicoar",

	// amendment structure
	"altera a lei", "altera o decreto", "altera os", "altera as",
	"acrescenta", "insere", "modifica", "revoga", "redacao dada",
	"nova redacao", "suprime", "veda a", "veda o",

	// legal instruments
	"projeto de lei", "medida provisoria", "mpv", "pec", "pl",
	"codigo penal", "codigo civil", "estatuto", "constituicao federal",
	"decreto-lei", "decreto lei", "lei brasileira", "lei de",

	// structural parts
	"caput", "paragrafo unico", "inciso", "alinea", "item", "dispositivo", "anexo",
}

// DefaultTagBlacklist holds generic indexing terms that carry no topical signal
var DefaultTagBlacklist = []string{
	"projeto", "lei", "sobre", "alteracao", "criacao", "instituicao", "federal", "nacional",
}
