package wms

import "encoding/xml"

const (
	NamespaceWMS   = "http://www.opengis.net/wms"
	NamespaceXLink = "http://www.w3.org/1999/xlink"

	Version111 = "1.1.1"
	Version130 = "1.3.0"
)

// Capabilities111 is a WMS 1.1.1 GetCapabilities document. Service and
// Capability are pointers so a missing mandatory block can be told apart
// from an empty one.
type Capabilities111 struct {
	XMLName        xml.Name       `xml:"WMT_MS_Capabilities"`
	Version        string         `xml:"version,attr"`
	UpdateSequence string         `xml:"updateSequence,attr"`
	Service        *Service111    `xml:"Service"`
	Capability     *Capability111 `xml:"Capability"`

	ServiceExceptions []ServiceException `xml:"ServiceException"`
}

type Service111 struct {
	Name           string         `xml:"Name"`
	Title          string         `xml:"Title"`
	Abstract       string         `xml:"Abstract"`
	Keywords       []string       `xml:"KeywordList>Keyword"`
	OnlineResource OnlineResource `xml:"OnlineResource"`

	ContactInformation struct {
		ContactPersonPrimary struct {
			ContactPerson       string `xml:"ContactPerson"`
			ContactOrganization string `xml:"ContactOrganization"`
		} `xml:"ContactPersonPrimary"`
		ContactElectronicMailAddress string `xml:"ContactElectronicMailAddress"`
	} `xml:"ContactInformation"`

	Fees              string `xml:"Fees"`
	AccessConstraints string `xml:"AccessConstraints"`
}

type Capability111 struct {
	Request struct {
		GetCapabilities *Operation `xml:"GetCapabilities"`
		GetMap          *Operation `xml:"GetMap"`
		GetFeatureInfo  *Operation `xml:"GetFeatureInfo"`
	} `xml:"Request"`
	Exception struct {
		Format []string `xml:"Format"`
	} `xml:"Exception"`
	Layers []Layer111 `xml:"Layer"`
}

type Operation struct {
	Format  []string  `xml:"Format"`
	DCPType []DCPType `xml:"DCPType"`
}

type DCPType struct {
	HTTP struct {
		Get  *HTTPMethod `xml:"Get"`
		Post *HTTPMethod `xml:"Post"`
	} `xml:"HTTP"`
}

type HTTPMethod struct {
	OnlineResource OnlineResource `xml:"OnlineResource"`
}

type OnlineResource struct {
	Type string `xml:"type,attr"`
	Href string `xml:"href,attr"`
}

type Layer111 struct {
	Queryable string   `xml:"queryable,attr"`
	Opaque    string   `xml:"opaque,attr"`
	Name      string   `xml:"Name"`
	Title     string   `xml:"Title"`
	Abstract  string   `xml:"Abstract"`
	SRS       []string `xml:"SRS"`

	LatLonBoundingBox *struct {
		MinX string `xml:"minx,attr"`
		MinY string `xml:"miny,attr"`
		MaxX string `xml:"maxx,attr"`
		MaxY string `xml:"maxy,attr"`
	} `xml:"LatLonBoundingBox"`

	Style []struct {
		Name  string `xml:"Name"`
		Title string `xml:"Title"`
	} `xml:"Style"`

	Layers []Layer111 `xml:"Layer"`
}

type ServiceException struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// NamedLayers returns the number of layers, at any depth, that carry a Name
// and can therefore be requested with GetMap.
func (c *Capabilities111) NamedLayers() int {
	if c.Capability == nil {
		return 0
	}

	return countNamed(c.Capability.Layers)
}

func countNamed(layers []Layer111) int {
	n := 0
	for _, l := range layers {
		if l.Name != "" {
			n++
		}
		n += countNamed(l.Layers)
	}

	return n
}
