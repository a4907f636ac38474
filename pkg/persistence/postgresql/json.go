package postgresql

import (
	"encoding/json"
	"fmt"
)

// marshalJSONB encodes a value for a JSONB column, mapping nil to the empty
// document so columns keep their NOT NULL defaults meaningful.
func marshalJSONB(value any, empty string) ([]byte, error) {
	if value == nil {
		return []byte(empty), nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jsonb value: %w", err)
	}

	return data, nil
}

func unmarshalJSONB(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode jsonb value: %w", err)
	}

	return nil
}
