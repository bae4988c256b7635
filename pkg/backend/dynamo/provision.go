package dynamo

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/cuemby/collstore/pkg/collstore"
)

// resolveProvision implements §4.3.5: a resolver function takes priority
// if supplied; otherwise provisioning hints come from the connection
// URL's query string as provision[_<table>[_index[_<idx>]]]=<read>.<write>.
// The most specific key present wins: an absent key falls through to the
// next more general one, while "-" means pay-per-request at that level and
// stops the fall-through. With no key present the result is pay-per-request.
func resolveProvision(q url.Values, resolver collstore.ProvisionResolver) func(table, index string) (*collstore.Provision, error) {
	return func(table, index string) (*collstore.Provision, error) {
		if resolver != nil {
			return resolver(table, index)
		}
		keys := []string{"provision"}
		if table != "" {
			keys = append(keys, "provision_"+table)
			if index != "" {
				keys = append(keys, "provision_"+table+"_index_"+index)
			}
		}
		// Most specific first.
		for i := len(keys) - 1; i >= 0; i-- {
			if raw := q.Get(keys[i]); raw != "" {
				return parseProvisionValue(raw)
			}
		}
		return nil, nil
	}
}

func parseProvisionValue(raw string) (*collstore.Provision, error) {
	if raw == "-" {
		return nil, nil
	}
	parts := strings.SplitN(raw, ".", 2)
	if len(parts) != 2 {
		return nil, &collstore.ConfigRejectedError{Reason: "dynamo: invalid provision hint " + raw}
	}
	read, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, &collstore.ConfigRejectedError{Reason: "dynamo: invalid provision read value " + parts[0]}
	}
	write, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, &collstore.ConfigRejectedError{Reason: "dynamo: invalid provision write value " + parts[1]}
	}
	return &collstore.Provision{Read: read, Write: write}, nil
}

// sumProvision combines per-attribute throughput hints for the uniqueness
// table, rounding each half up and enforcing a floor of 1 (§4.3.5).
func sumProvision(parts []*collstore.Provision) *collstore.Provision {
	if len(parts) == 0 {
		return nil
	}
	allNil := true
	for _, p := range parts {
		if p != nil {
			allNil = false
			break
		}
	}
	if allNil {
		return nil
	}
	var read, write int64
	for _, p := range parts {
		if p == nil {
			read += 1
			write += 1
			continue
		}
		read += p.Read
		write += p.Write
	}
	if read < 1 {
		read = 1
	}
	if write < 1 {
		write = 1
	}
	return &collstore.Provision{Read: read, Write: write}
}
