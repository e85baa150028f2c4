package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// RaceID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type   string `json:"type"`
	RaceID string `json:"raceId"`
}

// OddsUpdate representa um snapshot de cotas enviado aos clientes
// após uma admissão mudar os volumes da corrida
type OddsUpdate struct {
	RaceID  string      `json:"raceId"`
	Payload interface{} `json:"payload"`
}
