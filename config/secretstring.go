package config

// SecretStringValue replaces secret values in any rendering of configuration.
const SecretStringValue = "<secret>"

// SecretString is used for configuration values (credentials sent with
// remote fetches) which must not be visible in logs, dumps or debug reports.
// Use explicit conversion to string to get the actual value.
type SecretString string

func (s SecretString) mask() string {
	if len(s) == 0 {
		return ""
	}
	return SecretStringValue
}

// String makes fmt and zap.Stringer output safe.
func (s SecretString) String() string {
	return s.mask()
}

// MarshalJSON marshals SecretString to JSON making sure that actual value is not visible.
func (s SecretString) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte("\"" + s.mask() + "\""), nil
}

// MarshalYAML marshals SecretString to YAML making sure that actual value is not visible.
func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return s.mask(), nil
}
