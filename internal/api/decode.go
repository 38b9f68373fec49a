package api

import "encoding/json"

// decodeEventData round-trips a generic interface{} (the shape
// eventlog.Repository.ListEventsSince returns after JSON-unmarshaling a
// stored event) into a concrete typed struct.
func decodeEventData(data interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
