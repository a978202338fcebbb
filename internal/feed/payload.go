package feed

import (
	"strings"

	"github.com/yanun0323/decimal"
)

// Frame type discriminators used by the vendor protocol.
const (
	TrnmLogin   = "LOGIN"
	TrnmPing    = "PING"
	TrnmCondLst = "CNSRLST"
	TrnmCondReq = "CNSRREQ"
	TrnmCondClr = "CNSRCLR"
	TrnmReal    = "REAL"
	TrnmSystem  = "SYSTEM"
)

// System notice codes pushed by the server.
const (
	// SystemCodeDupSession means another session logged in with the same
	// token; reconnecting immediately would just bounce both sessions.
	SystemCodeDupSession = "R10001"
)

// envelope is the minimal frame shape used for dispatch.
type envelope struct {
	Trnm string `json:"trnm"`
}

type loginRequest struct {
	Trnm  string `json:"trnm"`
	Token string `json:"token"`
}

type loginAck struct {
	Trnm       string `json:"trnm"`
	ReturnCode int    `json:"return_code"`
	ReturnMsg  string `json:"return_msg"`
}

type pingFrame struct {
	Trnm string `json:"trnm"`
}

// conditionEntry is one named screening rule.
type conditionEntry struct {
	ID   string `json:"cond_id"`
	Name string `json:"cond_nm"`
}

type conditionListFrame struct {
	Trnm string           `json:"trnm"`
	Data []conditionEntry `json:"data"`
}

type condSearchRequest struct {
	Trnm   string `json:"trnm"`
	CondID string `json:"cond_id"`
	Search string `json:"search"` // "1" initial batch + stream
}

type condClearRequest struct {
	Trnm   string `json:"trnm"`
	CondID string `json:"cond_id"`
}

// condRow is one instrument row in an initial search-result batch. Prices
// come across as decimal strings.
type condRow struct {
	Code  string          `json:"jmcode"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type condBatchFrame struct {
	Trnm   string    `json:"trnm"`
	CondID string    `json:"cond_id"`
	Data   []condRow `json:"data"`
}

// realFrame is a streamed inclusion/exclusion event for a condition.
type realFrame struct {
	Trnm   string          `json:"trnm"`
	CondID string          `json:"cond_id"`
	Code   string          `json:"jmcode"`
	Event  string          `json:"evt"` // "I" inclusion, "D" exclusion
	Price  decimal.Decimal `json:"price"`
}

type systemFrame struct {
	Trnm string `json:"trnm"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// NormalizeCode strips exchange prefixes/suffixes and pads the numeric core
// to the canonical six-character width ("A5930" -> "005930").
func NormalizeCode(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	code := digits.String()
	if code == "" {
		return ""
	}
	if len(code) > 6 {
		code = code[:6]
	}
	return strings.Repeat("0", 6-len(code)) + code
}
