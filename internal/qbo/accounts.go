package qbo

import (
	"github.com/rotisserie/eris"
)

// AccountTypeInfo is the chart-of-accounts classification for one account.
type AccountTypeInfo struct {
	AccountType    string
	AccountSubtype string
}

// AccountTypeMap builds a QBO Account Id -> type/subtype mapping from an
// Account query payload. The common response shapes are accepted:
//
//	{"QueryResponse": {"Account": [...]}}
//	{"Account": [...]} or {"Account": {...}}
//	[...]
func AccountTypeMap(payload any) (map[string]AccountTypeInfo, error) {
	var accounts []map[string]any
	switch p := payload.(type) {
	case []any:
		for _, a := range p {
			if m, ok := asMap(a); ok {
				accounts = append(accounts, m)
			}
		}
	case map[string]any:
		if qr, ok := asMap(p["QueryResponse"]); ok {
			if list, ok := asSlice(qr["Account"]); ok {
				for _, a := range list {
					if m, ok := asMap(a); ok {
						accounts = append(accounts, m)
					}
				}
				break
			}
		}
		if list, ok := asSlice(p["Account"]); ok {
			for _, a := range list {
				if m, ok := asMap(a); ok {
					accounts = append(accounts, m)
				}
			}
		} else if m, ok := asMap(p["Account"]); ok {
			accounts = append(accounts, m)
		}
	default:
		return nil, eris.New("qbo: accounts payload must be a JSON object or list of accounts")
	}

	out := make(map[string]AccountTypeInfo, len(accounts))
	for _, acct := range accounts {
		id := cellString(acct["Id"])
		if id == "" {
			continue
		}
		out[id] = AccountTypeInfo{
			AccountType:    cellString(acct["AccountType"]),
			AccountSubtype: cellString(acct["AccountSubType"]),
		}
	}
	return out, nil
}
