package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/marrow"
)

// world is the replay stage: the anchor the script's gestures move, the UI
// pickables, and the content spheres taps resolve against.
type world struct {
	anchor *marrow.BasicAnchor
	ui     *marrow.PickableSet
	index  *marrow.SphereIndex
}

// worldFile is the on-disk layout. Vector fields are [x, y, z] triples;
// structure centers are anchor-local, everything else is world-space.
type worldFile struct {
	Anchor struct {
		Position []float64 `json:"position,omitempty"`
		Scale    float64   `json:"scale,omitempty"`
	} `json:"anchor"`
	Structures []struct {
		ID     string    `json:"id"`
		Center []float64 `json:"center"`
		Radius float64   `json:"radius"`
	} `json:"structures,omitempty"`
	Buttons []struct {
		Action   string    `json:"action"`
		Name     string    `json:"name,omitempty"`
		Center   []float64 `json:"center"`
		Radius   float64   `json:"radius"`
		Disabled bool      `json:"disabled,omitempty"`
	} `json:"buttons,omitempty"`
	Panels []struct {
		Action   string    `json:"action"`
		Name     string    `json:"name,omitempty"`
		Center   []float64 `json:"center"`
		U        []float64 `json:"u"`
		V        []float64 `json:"v"`
		Disabled bool      `json:"disabled,omitempty"`
	} `json:"panels,omitempty"`
}

// loadWorld builds the stage from a layout file. An empty path yields an
// empty world: an identity anchor, no pickables, no structures.
func loadWorld(path string) (*world, error) {
	w := &world{
		anchor: marrow.NewBasicAnchor(),
		ui:     marrow.NewPickableSet(),
	}
	w.index = marrow.NewSphereIndex(w.anchor)
	if path == "" {
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wf worldFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse world layout: %w", err)
	}

	if wf.Anchor.Position != nil {
		p, err := vec3("anchor position", wf.Anchor.Position)
		if err != nil {
			return nil, err
		}
		w.anchor.SetPosition(p)
	}
	if wf.Anchor.Scale != 0 {
		s := wf.Anchor.Scale
		w.anchor.SetScale(mgl64.Vec3{s, s, s})
	}
	w.anchor.UpdateWorldMatrix()

	for i, st := range wf.Structures {
		if st.ID == "" {
			return nil, fmt.Errorf("parse world layout: structure %d: missing id", i)
		}
		c, err := vec3(fmt.Sprintf("structure %d center", i), st.Center)
		if err != nil {
			return nil, err
		}
		if st.Radius <= 0 {
			return nil, fmt.Errorf("parse world layout: structure %d (%s): radius must be positive", i, st.ID)
		}
		w.index.Add(marrow.StructureID(st.ID), c, st.Radius)
	}

	for i, b := range wf.Buttons {
		if b.Action == "" {
			return nil, fmt.Errorf("parse world layout: button %d: missing action", i)
		}
		c, err := vec3(fmt.Sprintf("button %d center", i), b.Center)
		if err != nil {
			return nil, err
		}
		if b.Radius <= 0 {
			return nil, fmt.Errorf("parse world layout: button %d (%s): radius must be positive", i, b.Action)
		}
		p := w.ui.Add(marrow.UIAction(b.Action), marrow.HitSphere{Center: c, Radius: b.Radius})
		p.Name = b.Name
		p.Enabled = !b.Disabled
	}

	for i, pn := range wf.Panels {
		if pn.Action == "" {
			return nil, fmt.Errorf("parse world layout: panel %d: missing action", i)
		}
		c, err := vec3(fmt.Sprintf("panel %d center", i), pn.Center)
		if err != nil {
			return nil, err
		}
		u, err := vec3(fmt.Sprintf("panel %d u", i), pn.U)
		if err != nil {
			return nil, err
		}
		v, err := vec3(fmt.Sprintf("panel %d v", i), pn.V)
		if err != nil {
			return nil, err
		}
		p := w.ui.Add(marrow.UIAction(pn.Action), marrow.HitQuad{Center: c, U: u, V: v})
		p.Name = pn.Name
		p.Enabled = !pn.Disabled
	}
	return w, nil
}

func vec3(name string, v []float64) (mgl64.Vec3, error) {
	if len(v) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("parse world layout: %s must have 3 components, got %d", name, len(v))
	}
	return mgl64.Vec3{v[0], v[1], v[2]}, nil
}
