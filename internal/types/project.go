package types

// Project is the flat, export-facing rendering of a ranked bill. Every field is
// a plain string; absent values are rendered, never left null.
type Project struct {
	Norm            string `json:"norma"`
	Similarity      string `json:"similaridade_semantica"`
	TypeDescription string `json:"descricao_sigla"`
	PresentedAt     string `json:"data_apresentacao"`
	Authors         string `json:"autor"`
	Party           string `json:"partido"`
	Summary         string `json:"ementa"`
	DocumentURL     string `json:"link_documento_pdf"`
	PageURL         string `json:"link_pagina_web"`
	Indexing        string `json:"indexacao"`
	LastStage       string `json:"ultimo_estado"`
	LastStageAt     string `json:"data_ultimo_estado"`
	Situation       string `json:"situacao"`
}
