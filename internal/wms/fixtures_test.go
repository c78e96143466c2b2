package wms_test

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/delta10/wms-probe/internal/wms"
)

// capabilities130XML advertises two distinct HTTP endpoints under different
// operations, a duplicate under Post and a Service OnlineResource that is
// not an HTTP DCP endpoint.
const capabilities130XML = `<?xml version="1.0" encoding="UTF-8"?>
<WMS_Capabilities version="1.3.0" xmlns="http://www.opengis.net/wms" xmlns:xlink="http://www.w3.org/1999/xlink">
  <Service>
    <Name>WMS</Name>
    <Title>Kaartdiensten</Title>
    <OnlineResource xlink:type="simple" xlink:href="https://maps.example.org/about"/>
  </Service>
  <Capability>
    <Request>
      <GetCapabilities>
        <Format>text/xml</Format>
        <DCPType>
          <HTTP>
            <Get><OnlineResource xlink:type="simple" xlink:href="https://maps.example.org/wms?"/></Get>
            <Post><OnlineResource xlink:type="simple" xlink:href="https://maps.example.org/wms?"/></Post>
          </HTTP>
        </DCPType>
      </GetCapabilities>
      <GetMap>
        <Format>image/png</Format>
        <DCPType>
          <HTTP>
            <Get><OnlineResource xlink:type="simple" xlink:href=" https://tiles.example.org/geoserver/wms;jsessionid=0F1E2D3C?SERVICE=WMS&amp;"/></Get>
          </HTTP>
        </DCPType>
      </GetMap>
    </Request>
    <Exception><Format>XML</Format></Exception>
    <Layer>
      <Title>Root</Title>
      <Layer queryable="1"><Name>bomen</Name><Title>Bomen</Title></Layer>
    </Layer>
  </Capability>
</WMS_Capabilities>`

const capabilities130NoNamespaceXML = `<?xml version="1.0"?>
<WMS_Capabilities version="1.3.0"><Service><Title>x</Title></Service></WMS_Capabilities>`

const capabilities130WithExceptionXML = `<?xml version="1.0"?>
<WMS_Capabilities version="1.3.0" xmlns="http://www.opengis.net/wms">
  <ServiceException code="InvalidFormat">broken</ServiceException>
</WMS_Capabilities>`

const capabilities130EntityXML = `<?xml version="1.0"?>
<WMS_Capabilities version="1.3.0" xmlns="http://www.opengis.net/wms">
  <Service><Title>Luchtfoto&nbsp;2024</Title></Service>
</WMS_Capabilities>`

const capabilities111XML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE WMT_MS_Capabilities SYSTEM "http://schemas.opengis.net/wms/1.1.1/WMS_MS_Capabilities.dtd">
<WMT_MS_Capabilities version="1.1.1">
  <Service>
    <Name>OGC:WMS</Name>
    <Title>Legacy WMS</Title>
    <OnlineResource xmlns:xlink="http://www.w3.org/1999/xlink" xlink:href="http://legacy.example.org/"/>
  </Service>
  <Capability>
    <Request>
      <GetMap>
        <Format>image/png</Format>
        <DCPType><HTTP><Get>
          <OnlineResource xmlns:xlink="http://www.w3.org/1999/xlink" xlink:href="http://legacy.example.org/cgi-bin/mapserv?map=/srv/legacy.map&amp;"/>
        </Get></HTTP></DCPType>
      </GetMap>
    </Request>
    <Layer>
      <Title>Root</Title>
      <SRS>EPSG:28992</SRS>
      <Layer queryable="0"><Name>percelen</Name><Title>Percelen</Title></Layer>
    </Layer>
  </Capability>
</WMT_MS_Capabilities>`

const capabilities111NoLayersXML = `<?xml version="1.0"?>
<WMT_MS_Capabilities version="1.1.1">
  <Service><Name>OGC:WMS</Name><Title>Empty</Title></Service>
  <Capability><Layer><Title>Root without name</Title></Layer></Capability>
</WMT_MS_Capabilities>`

const capabilities111NoServiceXML = `<?xml version="1.0"?>
<WMT_MS_Capabilities version="1.1.1">
  <Capability><Layer><Name>a</Name><Title>A</Title></Layer></Capability>
</WMT_MS_Capabilities>`

const capabilities111Latin1XML = "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
	"<WMT_MS_Capabilities version=\"1.1.1\"><Service><Name>OGC:WMS</Name><Title>Kart\xf8k</Title></Service>" +
	"<Capability><Layer><Name>hav</Name><Title>Hav</Title></Layer></Capability></WMT_MS_Capabilities>"

const serviceExceptionXML = `<?xml version="1.0" encoding="UTF-8"?>
<ServiceExceptionReport version="1.3.0" xmlns="http://www.opengis.net/ogc">
  <ServiceException code="InvalidParameterValue">Unknown service</ServiceException>
</ServiceExceptionReport>`

// capabilities130LenientXML has an unescaped & in an href and an HTML entity
// in the title, both common in the wild.
const capabilities130LenientXML = `<?xml version="1.0"?>
<WMS_Capabilities version="1.3.0" xmlns="http://www.opengis.net/wms" xmlns:xlink="http://www.w3.org/1999/xlink">
  <Service><Title>Kaart&nbsp;service</Title></Service>
  <Capability>
    <Request>
      <GetMap>
        <DCPType><HTTP><Get><OnlineResource xlink:href="http://mapserver.example.org/wms?map=kaart.map&SERVICE=WMS"/></Get></HTTP></DCPType>
      </GetMap>
    </Request>
  </Capability>
</WMS_Capabilities>`

const trailingRootXML = `<?xml version="1.0"?><WMS_Capabilities version="1.3.0" xmlns="http://www.opengis.net/wms"/><html/>`

const truncatedXML = `<?xml version="1.0"?><WMS_Capabilities xmlns="http://www.opengis.net/wms"><Service>`

const notFoundHTML = `<!DOCTYPE html>
<html><head><title>Page not found</title></head>
<body><h1>Not Found</h1><p>The requested URL was not found on this server.</p></body></html>`

// stubFetcher answers by the version parameter of the request URL. The key
// "" is used when no version was sent.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]wms.FetchOutcome
	calls     []string
}

func newStubFetcher(responses map[string]wms.FetchOutcome) *stubFetcher {
	return &stubFetcher{responses: responses}
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string) wms.FetchOutcome {
	version := versionOf(rawURL)

	s.mu.Lock()
	s.calls = append(s.calls, version)
	s.mu.Unlock()

	outcome, ok := s.responses[version]
	if !ok {
		return wms.FetchOutcome{Kind: wms.FetchHTTPError, Status: 404}
	}

	return outcome
}

func (s *stubFetcher) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.calls...)
}

func versionOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	for key, values := range u.Query() {
		if strings.EqualFold(key, "version") && len(values) > 0 {
			return values[0]
		}
	}

	return ""
}

func success(body string) wms.FetchOutcome {
	return wms.FetchOutcome{Kind: wms.FetchSuccess, Status: 200, Body: []byte(body)}
}

func timeout() wms.FetchOutcome {
	return wms.FetchOutcome{Kind: wms.FetchTimeout, Err: context.DeadlineExceeded}
}
