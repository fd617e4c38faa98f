package config

import (
	"github.com/pelletier/go-toml/v2"
)

// LegacyPath is the TOML file earlier desk deployments were configured with.
// It is tried when QUEUEDESK_CONFIG is unset and DefaultPath is absent.
const LegacyPath = "Config.toml"

// tomlFile mirrors the sections of a legacy Config.toml. Keys it does not name
// keep their defaults; pointers tell an absent key from a zero value.
type tomlFile struct {
	Network struct {
		IPAddress *string `toml:"ip_address"`
		Port      *string `toml:"port"`
	} `toml:"network"`
	Database struct {
		FirebaseProjectID     *string `toml:"firebase_project_id"`
		Collection            *string `toml:"collection"`
		ServiceAccountKeyPath *string `toml:"service_account_key_path"`
	} `toml:"database"`
	Queue struct {
		Queues     *int `toml:"queues"`
		QueueSlots *int `toml:"queue_slots"`
		DaysRange  *int `toml:"days_range"`
	} `toml:"queue"`
	Form struct {
		Fields []struct {
			Name      string `toml:"name"`
			FieldType string `toml:"field_type"`
			Required  bool   `toml:"required"`
		} `toml:"fields"`
	} `toml:"form"`
}

func (c *Config) decodeTOML(data []byte) error {
	var f tomlFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return err
	}

	setString(&c.Network.IPAddress, f.Network.IPAddress)
	setString(&c.Network.Port, f.Network.Port)
	setString(&c.Database.FirebaseProjectID, f.Database.FirebaseProjectID)
	setString(&c.Database.Collection, f.Database.Collection)
	setString(&c.Database.ServiceAccountKeyPath, f.Database.ServiceAccountKeyPath)
	setInt(&c.Queue.Queues, f.Queue.Queues)
	setInt(&c.Queue.QueueSlots, f.Queue.QueueSlots)
	setInt(&c.Queue.DaysRange, f.Queue.DaysRange)

	if f.Form.Fields != nil {
		c.Form.Fields = make([]FormField, 0, len(f.Form.Fields))
		for _, field := range f.Form.Fields {
			c.Form.Fields = append(c.Form.Fields, FormField{Name: field.Name, FieldType: field.FieldType, Required: field.Required})
		}
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
