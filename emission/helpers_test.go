package emission

import "github.com/flagger-go/covhmm/config"

func exampleEmissionConfig() config.EmissionConfig {
	cfg := config.Default().Emission
	return cfg
}
