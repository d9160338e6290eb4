package synth

// Binding conventions shared by every asset. Asset text cannot change them.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"

	// CameraGroup and CameraBinding locate the camera uniform block in both
	// stages.
	CameraGroup   = 0
	CameraBinding = 0

	// MaterialGroup holds the fragment texture and sampler pairs.
	MaterialGroup        = 1
	AlbedoTextureBinding = 0
	AlbedoSamplerBinding = 1
	DetailTextureBinding = 2
	DetailSamplerBinding = 3

	// Vertex attribute locations.
	PositionLocation = 0
	NormalLocation   = 1
	UVLocation       = 2
)

// Attribute is one conventional vertex attribute.
type Attribute struct {
	Name     string
	Type     string
	Location uint32
}

// Attributes lists the conventional vertex attributes in location order.
var Attributes = []Attribute{
	{Name: "position", Type: "vec3<f32>", Location: PositionLocation},
	{Name: "normal", Type: "vec3<f32>", Location: NormalLocation},
	{Name: "uv", Type: "vec2<f32>", Location: UVLocation},
}

// TexturePair is a texture and the sampler meant to read it.
type TexturePair struct {
	Texture        string
	Sampler        string
	TextureBinding uint32
	SamplerBinding uint32
}

// TexturePairs lists the fragment texture and sampler pairs.
var TexturePairs = []TexturePair{
	{Texture: "albedo_texture", Sampler: "albedo_sampler", TextureBinding: AlbedoTextureBinding, SamplerBinding: AlbedoSamplerBinding},
	{Texture: "detail_texture", Sampler: "detail_sampler", TextureBinding: DetailTextureBinding, SamplerBinding: DetailSamplerBinding},
}
