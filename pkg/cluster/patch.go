package cluster

import (
	"encoding/json"
	"fmt"
)

type metadataPatch struct {
	Metadata struct {
		Annotations map[string]string `json:"annotations"`
	} `json:"metadata"`
}

func rebootPatch(annotation string) ([]byte, error) {
	var p metadataPatch
	p.Metadata.Annotations = map[string]string{annotation: ""}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to build reboot patch: %w", err)
	}
	return data, nil
}
