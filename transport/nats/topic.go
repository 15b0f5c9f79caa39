package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/ragblade"
)

func AddEndpoints(group micro.Group, endpoints *ragblade.EndpointSet) error {
	if err := group.AddEndpoint("ingest", IngestHandler(endpoints.Ingest)); err != nil {
		return err
	}

	if err := group.AddEndpoint("retrieve", RetrieveHandler(endpoints.Retrieve)); err != nil {
		return err
	}

	return group.AddEndpoint("search_company_policy", SearchCompanyPolicyHandler(endpoints.SearchCompanyPolicy))
}
