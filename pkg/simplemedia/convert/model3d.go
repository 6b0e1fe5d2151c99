package convert

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Model3D renders a blueprint card with vertex and face counts, bounding box
// and, for closed STL meshes, the enclosed volume.
type Model3D struct{}

type meshStats struct {
	vertices int
	faces    int
	min, max [3]float64
	volume   float64
	scene    bool
}

func (Model3D) Convert(ctx context.Context, src []byte, req simplemedia.ConvertRequest) (*simplemedia.Rendition, error) {
	ext := simplemedia.Extension(req.AssetID)
	stats, err := parseModel(src, ext)

	var data []byte
	if err != nil {
		data, err = blueprintCard.render("3D Model Error", "Could not parse 3D file: "+err.Error())
	} else {
		kind := "3D Model"
		if stats.scene {
			kind = "3D Scene"
		}
		title := fmt.Sprintf("%s (%s)", kind, strings.ToUpper(strings.TrimPrefix(ext, ".")))
		summary := fmt.Sprintf("Vertices: %d\nFaces/Nodes: %d\n\nBounding Box Dimensions:\nX: %.2f\nY: %.2f\nZ: %.2f\n\nVolume: %.2f",
			stats.vertices, stats.faces,
			stats.max[0]-stats.min[0], stats.max[1]-stats.min[1], stats.max[2]-stats.min[2],
			stats.volume)
		data, err = blueprintCard.render(title, summary)
	}
	if err != nil {
		return nil, err
	}
	return pngRendition(data), nil
}

func parseModel(src []byte, ext string) (*meshStats, error) {
	switch ext {
	case ".stl":
		if bytes.HasPrefix(bytes.TrimSpace(src), []byte("solid")) && bytes.Contains(src, []byte("facet")) {
			return parseASCIISTL(src)
		}
		return parseBinarySTL(src)
	case ".obj":
		return parseOBJ(src)
	case ".glb":
		doc, err := glbJSON(src)
		if err != nil {
			return nil, err
		}
		return parseGLTF(doc)
	case ".gltf":
		return parseGLTF(src)
	}
	return nil, fmt.Errorf("unsupported model extension %q", ext)
}

func newStats() *meshStats {
	return &meshStats{
		min: [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)},
		max: [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
}

func (s *meshStats) add(v [3]float64) {
	for i := range v {
		s.min[i] = math.Min(s.min[i], v[i])
		s.max[i] = math.Max(s.max[i], v[i])
	}
	s.vertices++
}

func (s *meshStats) finish() (*meshStats, error) {
	if s.vertices == 0 {
		return nil, errors.New("model has no vertices")
	}
	s.volume = math.Abs(s.volume)
	return s, nil
}

// signedVolume is the signed volume of the tetrahedron spanned by the origin
// and a triangle. Summed over a closed mesh it gives the enclosed volume.
func signedVolume(a, b, c [3]float64) float64 {
	return (a[0]*(b[1]*c[2]-b[2]*c[1]) - a[1]*(b[0]*c[2]-b[2]*c[0]) + a[2]*(b[0]*c[1]-b[1]*c[0])) / 6
}

func parseBinarySTL(src []byte) (*meshStats, error) {
	if len(src) < 84 {
		return nil, errors.New("binary STL too short")
	}
	count := int(binary.LittleEndian.Uint32(src[80:84]))
	if 84+count*50 > len(src) {
		return nil, fmt.Errorf("binary STL declares %d triangles but is truncated", count)
	}
	s := newStats()
	for i := 0; i < count; i++ {
		off := 84 + i*50 + 12
		var tri [3][3]float64
		for v := 0; v < 3; v++ {
			for c := 0; c < 3; c++ {
				bits := binary.LittleEndian.Uint32(src[off+v*12+c*4:])
				tri[v][c] = float64(math.Float32frombits(bits))
			}
			s.add(tri[v])
		}
		s.volume += signedVolume(tri[0], tri[1], tri[2])
	}
	s.faces = count
	return s.finish()
}

func parseASCIISTL(src []byte) (*meshStats, error) {
	s := newStats()
	var tri [][3]float64
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 4 && fields[0] == "vertex" {
			v, err := parseVec(fields[1:])
			if err != nil {
				return nil, err
			}
			s.add(v)
			tri = append(tri, v)
			if len(tri) == 3 {
				s.volume += signedVolume(tri[0], tri[1], tri[2])
				s.faces++
				tri = tri[:0]
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s.finish()
}

func parseOBJ(src []byte) (*meshStats, error) {
	s := newStats()
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("malformed vertex line %q", sc.Text())
			}
			v, err := parseVec(fields[1:4])
			if err != nil {
				return nil, err
			}
			s.add(v)
		case "f":
			s.faces++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s.finish()
}

func parseVec(fields []string) ([3]float64, error) {
	var v [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// glbJSON returns the JSON chunk of a binary glTF container.
func glbJSON(src []byte) ([]byte, error) {
	if len(src) < 20 || string(src[:4]) != "glTF" {
		return nil, errors.New("not a GLB container")
	}
	chunkLen := int(binary.LittleEndian.Uint32(src[12:16]))
	if string(src[16:20]) != "JSON" || 20+chunkLen > len(src) {
		return nil, errors.New("GLB has no JSON chunk")
	}
	return src[20 : 20+chunkLen], nil
}

type gltfDoc struct {
	Nodes     []json.RawMessage `json:"nodes"`
	Accessors []struct {
		Count int       `json:"count"`
		Min   []float64 `json:"min"`
		Max   []float64 `json:"max"`
	} `json:"accessors"`
	Meshes []struct {
		Primitives []struct {
			Attributes map[string]int `json:"attributes"`
		} `json:"primitives"`
	} `json:"meshes"`
}

// parseGLTF reads counts and bounds from the POSITION accessors. Faces are
// approximated by the node count, as for any scene graph.
func parseGLTF(doc []byte) (*meshStats, error) {
	var g gltfDoc
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, err
	}
	s := newStats()
	s.scene = true
	for _, m := range g.Meshes {
		for _, p := range m.Primitives {
			idx, ok := p.Attributes["POSITION"]
			if !ok || idx < 0 || idx >= len(g.Accessors) {
				continue
			}
			acc := g.Accessors[idx]
			if len(acc.Min) == 3 && len(acc.Max) == 3 {
				s.add([3]float64{acc.Min[0], acc.Min[1], acc.Min[2]})
				s.add([3]float64{acc.Max[0], acc.Max[1], acc.Max[2]})
				s.vertices -= 2
			}
			s.vertices += acc.Count
		}
	}
	s.faces = len(g.Nodes)
	if math.IsInf(s.min[0], 1) {
		s.min, s.max = [3]float64{}, [3]float64{}
	}
	return s.finish()
}
