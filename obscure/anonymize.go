package obscure

import (
	"fmt"
	"hash/fnv"

	"github.com/hannes/docshield/pii"
)

// Replacement tables per type. Entries are plausible but fabricated; none
// correspond to real people or accounts.
var (
	anonNames = []string{
		"Alex Morgan", "Jordan Lee", "Casey Brown", "Riley Davis",
		"Taylor Wilson", "Morgan Clark", "Jamie Walker", "Avery Hall",
	}
	anonEmails = []string{
		"user1@example.com", "contact@example.org", "info@example.net",
		"hello@example.com", "mail@example.org",
	}
	anonPhones = []string{
		"(555) 010-0001", "(555) 010-0002", "(555) 010-0003",
		"(555) 010-0004", "(555) 010-0005",
	}
	anonAddresses = []string{
		"100 Example Street", "200 Sample Avenue", "300 Placeholder Road",
		"400 Test Boulevard", "500 Demo Lane",
	}
	anonCards = []string{
		"4000-0000-0000-0002", "4000-0000-0000-0010", "4000-0000-0000-0028",
	}
	anonSSNs = []string{
		"900-00-0001", "900-00-0002", "900-00-0003",
	}
	anonDates = []string{
		"01/01/1970", "02/02/1980", "03/03/1990", "04/04/2000",
	}
)

// anonymize replaces the text with a deterministic entry from the per-type
// table. The per-session salt keeps the choice stable for repeated calls in
// one process while staying untraceable to the original value across runs.
func (e *Engine) anonymize(typ pii.Type, text string) string {
	table := anonTable(typ)
	if len(table) == 0 {
		return fmt.Sprintf("[%s]", typ)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	idx := (h.Sum32() ^ e.salt) % uint32(len(table))
	return table[idx]
}

func anonTable(typ pii.Type) []string {
	switch typ {
	case pii.TypePersonName:
		return anonNames
	case pii.TypeEmail:
		return anonEmails
	case pii.TypePhone:
		return anonPhones
	case pii.TypeAddress:
		return anonAddresses
	case pii.TypeCreditCard:
		return anonCards
	case pii.TypeSSN:
		return anonSSNs
	case pii.TypeDateOfBirth:
		return anonDates
	default:
		return nil
	}
}
