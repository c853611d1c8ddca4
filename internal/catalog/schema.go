package catalog

// File is the top-level structure of the fabric catalog yaml.
type File struct {
	Users           []UserProps           `yaml:"users"`
	FabricTypes     []FabricTypeProps     `yaml:"fabricTypes"`
	NetworkElements []NetworkElementProps `yaml:"networkElements"`
	Satellites      []SatelliteProps      `yaml:"satellites"`
	Tracks          []TrackProps          `yaml:"tracks"`
	Instances       []InstanceProps       `yaml:"instances"`
}

type UserProps struct {
	ID        string `yaml:"id"`
	Email     string `yaml:"email"`
	FirstName string `yaml:"firstName,omitempty"`
	LastName  string `yaml:"lastName,omitempty"`
}

type FabricTypeProps struct {
	Key            string `yaml:"key"`
	Name           string `yaml:"name"`
	NetworkElement string `yaml:"networkElement"`
}

type NetworkElementProps struct {
	Key   string `yaml:"key"`
	Name  string `yaml:"name"`
	Image string `yaml:"image,omitempty"`
}

type SatelliteProps struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Domain   string `yaml:"domain"`
	PublicIP string `yaml:"publicIp,omitempty"`
	APIURL   string `yaml:"apiUrl,omitempty"`
}

type TrackProps struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	User string `yaml:"user,omitempty"`
}

// InstanceProps describes one fog instance and the elements deployed on it.
// StreamViewer and Console name element instances on this instance.
type InstanceProps struct {
	ID           string         `yaml:"id"`
	Name         string         `yaml:"name"`
	Type         string         `yaml:"type"`
	StreamViewer string         `yaml:"streamViewer,omitempty"`
	Console      string         `yaml:"console,omitempty"`
	Elements     []ElementProps `yaml:"elements,omitempty"`
}

type ElementProps struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Element  string `yaml:"element"`
	TypeName string `yaml:"typeName,omitempty"`
	Track    string `yaml:"track,omitempty"`
	User     string `yaml:"user,omitempty"`
}
