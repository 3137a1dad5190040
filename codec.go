package lockbox

import "encoding/json"

// encode serializes a value for storage. Values round-trip through JSON, so
// anything encoding/json accepts can be stored, including empty strings and
// empty structs.
func encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	return data, nil
}

// decode deserializes a stored payload into out, which must be a pointer.
func decode(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
