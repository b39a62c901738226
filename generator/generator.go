package generator

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/yaroher/protoc-gen-ue-plain/convgen"
	"github.com/yaroher/protoc-gen-ue-plain/ir"
	"github.com/yaroher/protoc-gen-ue-plain/logger"
	"github.com/yaroher/protoc-gen-ue-plain/mapper"
	"github.com/yaroher/protoc-gen-ue-plain/render"
	"go.uber.org/zap"
	"google.golang.org/protobuf/compiler/protogen"
)

// Generator — оркестратор конвейера: нормализация дескрипторов,
// маппинг типов, рендер артефактов и запись в ответ protoc.
// Любая ошибка любого этапа отменяет генерацию целиком.
type Generator struct {
	Settings *PluginSettings
	Plugin   *protogen.Plugin
}

func NewGenerator(p *protogen.Plugin, settings *PluginSettings) (*Generator, error) {
	if settings == nil {
		return nil, errors.New("plugin settings are required")
	}
	return &Generator{
		Settings: settings,
		Plugin:   p,
	}, nil
}

func (g *Generator) Generate() error {
	loader := ir.NewLoader(g.Plugin.Request)
	files, err := loader.Load()
	if err != nil {
		return errors.Wrap(err, "normalize descriptors")
	}

	// request.proto_file идёт в топологическом порядке, зависимости
	// регистрируются раньше зависимых
	tm := mapper.NewTypeMapper(g.Settings.MapperConfig())
	for _, fileProto := range g.Plugin.Request.GetProtoFile() {
		file, ok := files[fileProto.GetName()]
		if !ok {
			continue
		}
		if err := tm.RegisterFile(file); err != nil {
			return errors.Wrapf(err, "register types of %s", file.Name)
		}
	}

	renderer := render.NewRenderer()
	names := newFileNames()
	for _, name := range loader.FilesToGenerate() {
		file, ok := files[name]
		if !ok {
			return errors.Newf("file to generate %q is missing from the request", name)
		}
		mapped, err := tm.MapFile(file)
		if err != nil {
			return errors.Wrapf(err, "map %s", name)
		}

		base := names.claim(render.SanitizeFileName(name))
		typesOut := renderer.RenderOutput(mapped, base+".ueplain.h", base+".ueplain.cpp")
		convOut := convgen.Generate(mapped).RenderOutput(typesOut.HeaderName, base+".ueplain.conv.h", base+".ueplain.conv.cpp")

		logger.Info("generated",
			zap.String("proto", name),
			zap.String("types_header", typesOut.HeaderName),
			zap.String("conv_header", convOut.HeaderName),
		)
		for _, out := range []render.FileOutput{typesOut, convOut} {
			if err := g.write(out.HeaderName, out.Header); err != nil {
				return err
			}
			if err := g.write(out.SourceName, out.Source); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Generator) write(name, content string) error {
	gf := g.Plugin.NewGeneratedFile(name, "")
	if _, err := gf.Write([]byte(content)); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return nil
}

// fileNames выдаёт уникальные базовые имена выходных файлов:
// при коллизии санитизированных имён добавляется числовой суффикс
type fileNames struct {
	used map[string]int
}

func newFileNames() *fileNames {
	return &fileNames{used: make(map[string]int)}
}

func (n *fileNames) claim(base string) string {
	count := n.used[base]
	n.used[base] = count + 1
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s%d", base, count)
}
