package flight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hugr-lab/opal-airport/auth"
	"github.com/hugr-lab/opal-airport/catalog"
	"github.com/hugr-lab/opal-airport/internal/msgpack"
	"github.com/hugr-lab/opal-airport/internal/serialize"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var participantsSchema = arrow.NewSchema([]arrow.Field{
	{Name: "_id", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "age", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

type memTable struct {
	name    string
	rows    [][2]string
	scanErr error
	lastOpt *catalog.ScanOptions
}

func (t *memTable) Name() string               { return t.name }
func (t *memTable) Comment() string            { return "Cohort." + t.name }
func (t *memTable) ArrowSchema() *arrow.Schema { return participantsSchema }

func (t *memTable) Scan(_ context.Context, opts *catalog.ScanOptions) (array.RecordReader, error) {
	t.lastOpt = opts
	if t.scanErr != nil {
		return nil, t.scanErr
	}
	b := array.NewRecordBuilder(memory.DefaultAllocator, participantsSchema)
	defer b.Release()
	for _, row := range t.rows {
		b.Field(0).(*array.StringBuilder).Append(row[0])
		b.Field(1).(*array.StringBuilder).Append(row[1])
	}
	rec := b.NewRecordBatch()
	defer rec.Release()
	return array.NewRecordReader(participantsSchema, []arrow.RecordBatch{rec})
}

type memSchema struct {
	name   string
	tables []*memTable
}

func (s *memSchema) Name() string    { return s.name }
func (s *memSchema) Comment() string { return "Opal values" }

func (s *memSchema) Tables(context.Context) ([]catalog.Table, error) {
	out := make([]catalog.Table, len(s.tables))
	for i, t := range s.tables {
		out[i] = t
	}
	return out, nil
}

func (s *memSchema) Table(_ context.Context, name string) (catalog.Table, error) {
	for _, t := range s.tables {
		if t.name == name {
			return t, nil
		}
	}
	return nil, nil
}

type memCatalog struct {
	schemas []*memSchema
	version uint64
	err     error
}

func (c *memCatalog) Schemas(context.Context) ([]catalog.Schema, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([]catalog.Schema, len(c.schemas))
	for i, s := range c.schemas {
		out[i] = s
	}
	return out, nil
}

func (c *memCatalog) Schema(_ context.Context, name string) (catalog.Schema, error) {
	if c.err != nil {
		return nil, c.err
	}
	for _, s := range c.schemas {
		if s.name == name {
			return s, nil
		}
	}
	return nil, nil
}

func (c *memCatalog) Version(context.Context) (uint64, bool, error) {
	return c.version, false, nil
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		version: 7,
		schemas: []*memSchema{
			{name: "cohort", tables: []*memTable{
				{name: "participants", rows: [][2]string{{"p1", "42"}, {"p2", "37"}}},
				{name: "visits"},
			}},
			{name: "study_a"},
		},
	}
}

// upstreamError mimics a remote HTTP failure.
type upstreamError int

func (e upstreamError) Error() string   { return fmt.Sprintf("upstream %d", int(e)) }
func (e upstreamError) HTTPStatus() int { return int(e) }

func startServer(t *testing.T, cat catalog.Catalog, authenticator auth.Authenticator) flight.Client {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(UnaryServerInterceptor(authenticator)),
		grpc.StreamInterceptor(StreamServerInterceptor(authenticator)),
	)
	RegisterFlightServer(grpcServer, NewServer(cat, memory.DefaultAllocator, testLogger(), lis.Addr().String()))
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	client, err := flight.NewClientWithMiddleware(lis.Addr().String(), nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func doAction(t *testing.T, client flight.Client, ctx context.Context, typ string, body any) ([]byte, error) {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		if raw, err = msgpack.Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	stream, err := client.DoAction(ctx, &flight.Action{Type: typ, Body: raw})
	if err != nil {
		return nil, err
	}
	result, err := stream.Recv()
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

func TestGetFlightInfo(t *testing.T) {
	client := startServer(t, newMemCatalog(), nil)
	ctx := context.Background()

	info, err := client.GetFlightInfo(ctx, &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{"cohort", "participants"},
	})
	if err != nil {
		t.Fatalf("GetFlightInfo: %v", err)
	}
	schema, err := flight.DeserializeSchema(info.Schema, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("DeserializeSchema: %v", err)
	}
	if !schema.Equal(participantsSchema) {
		t.Errorf("schema = %s", schema)
	}
	if len(info.Endpoint) != 1 || len(info.Endpoint[0].Location) != 1 {
		t.Fatalf("unexpected endpoints: %v", info.Endpoint)
	}

	tests := []struct {
		name string
		desc *flight.FlightDescriptor
		code codes.Code
	}{
		{"cmd descriptor", &flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: []byte("x")}, codes.InvalidArgument},
		{"short path", &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{"cohort"}}, codes.InvalidArgument},
		{"unknown schema", &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{"nope", "t"}}, codes.NotFound},
		{"unknown table", &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{"cohort", "nope"}}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.GetFlightInfo(ctx, tt.desc)
			if status.Code(err) != tt.code {
				t.Errorf("code = %v, want %v (%v)", status.Code(err), tt.code, err)
			}
		})
	}
}

func TestDoGet(t *testing.T) {
	cat := newMemCatalog()
	client := startServer(t, cat, nil)
	ctx := context.Background()

	ticket, _ := EncodeTicket("cohort", "participants", []string{"age"}, nil)
	stream, err := client.DoGet(ctx, &flight.Ticket{Ticket: ticket})
	if err != nil {
		t.Fatalf("DoGet: %v", err)
	}
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		t.Fatalf("NewRecordReader: %v", err)
	}
	defer reader.Release()

	rows := 0
	for reader.Next() {
		rec := reader.RecordBatch()
		ages := rec.Column(1).(*array.String)
		if ages.Value(0) != "42" {
			t.Errorf("age = %s", ages.Value(0))
		}
		rows += int(rec.NumRows())
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader: %v", err)
	}
	if rows != 2 {
		t.Errorf("rows = %d, want 2", rows)
	}
	if got := cat.schemas[0].tables[0].lastOpt; got == nil || len(got.Columns) != 1 || got.Columns[0] != "age" {
		t.Errorf("scan options = %+v", got)
	}
}

func TestDoGetErrors(t *testing.T) {
	cat := newMemCatalog()
	cat.schemas[0].tables[1].scanErr = upstreamError(http.StatusServiceUnavailable)
	client := startServer(t, cat, nil)
	ctx := context.Background()

	read := func(ticket []byte) error {
		stream, err := client.DoGet(ctx, &flight.Ticket{Ticket: ticket})
		if err != nil {
			return err
		}
		_, err = stream.Recv()
		return err
	}

	if err := read([]byte("garbage")); status.Code(err) != codes.InvalidArgument {
		t.Errorf("garbage ticket: %v", err)
	}
	missing, _ := EncodeTicket("cohort", "missing", nil, nil)
	if err := read(missing); status.Code(err) != codes.NotFound {
		t.Errorf("missing table: %v", err)
	}
	failing, _ := EncodeTicket("cohort", "visits", nil, nil)
	if err := read(failing); status.Code(err) != codes.Unavailable {
		t.Errorf("failing scan: %v", err)
	}
}

func TestListFlights(t *testing.T) {
	client := startServer(t, newMemCatalog(), nil)

	stream, err := client.ListFlights(context.Background(), &flight.Criteria{})
	if err != nil {
		t.Fatalf("ListFlights: %v", err)
	}
	info, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	d, _ := serialize.NewDecompressor()
	defer d.Close()
	if _, err := d.Decompress(info.Endpoint[0].Ticket.Ticket); err != nil {
		t.Fatalf("ticket is not zstd: %v", err)
	}
}

func TestListSchemasAction(t *testing.T) {
	client := startServer(t, newMemCatalog(), nil)

	body, err := doAction(t, client, context.Background(), ActionListSchemas, map[string]any{"catalog_name": "opal"})
	if err != nil {
		t.Fatalf("list_schemas: %v", err)
	}
	raw, err := serialize.Unpack(body)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	var root struct {
		Schemas []struct {
			Name      string `msgpack:"name"`
			IsDefault bool   `msgpack:"is_default"`
			Contents  struct {
				SHA256     string `msgpack:"sha256"`
				Serialized string `msgpack:"serialized"`
			} `msgpack:"contents"`
		} `msgpack:"schemas"`
		VersionInfo struct {
			CatalogVersion uint64 `msgpack:"catalog_version"`
			IsFixed        bool   `msgpack:"is_fixed"`
		} `msgpack:"version_info"`
	}
	if err := msgpack.Decode(raw, &root); err != nil {
		t.Fatalf("decode root: %v", err)
	}
	if len(root.Schemas) != 2 || root.Schemas[0].Name != "cohort" || !root.Schemas[0].IsDefault || root.Schemas[1].IsDefault {
		t.Fatalf("unexpected schemas: %+v", root.Schemas)
	}
	if root.VersionInfo.CatalogVersion != 7 || root.VersionInfo.IsFixed {
		t.Errorf("version_info = %+v", root.VersionInfo)
	}

	contents, err := serialize.Unpack([]byte(root.Schemas[0].Contents.Serialized))
	if err != nil {
		t.Fatalf("Unpack contents: %v", err)
	}
	var infos [][]byte
	if err := msgpack.Decode(contents, &infos); err != nil {
		t.Fatalf("decode infos: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d flight infos, want 2", len(infos))
	}
	var info flight.FlightInfo
	if err := proto.Unmarshal(infos[0], &info); err != nil {
		t.Fatalf("unmarshal FlightInfo: %v", err)
	}
	meta, err := msgpack.DecodeMap(info.AppMetadata)
	if err != nil {
		t.Fatalf("decode app metadata: %v", err)
	}
	if meta["name"] != "participants" || meta["schema"] != "cohort" || meta["type"] != "table" {
		t.Errorf("app metadata = %v", meta)
	}
}

func TestListSchemasUpstreamFailure(t *testing.T) {
	cat := newMemCatalog()
	cat.err = upstreamError(http.StatusUnauthorized)
	client := startServer(t, cat, nil)

	_, err := doAction(t, client, context.Background(), ActionListSchemas, nil)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v (%v)", status.Code(err), err)
	}
}

func TestListTablesAction(t *testing.T) {
	client := startServer(t, newMemCatalog(), nil)
	ctx := context.Background()

	body, err := doAction(t, client, ctx, ActionListTables, map[string]any{"schema_name": "cohort"})
	if err != nil {
		t.Fatalf("list_tables: %v", err)
	}
	var one struct {
		Schema string   `msgpack:"schema"`
		Tables []string `msgpack:"tables"`
	}
	if err := msgpack.Decode(body, &one); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if one.Schema != "cohort" || len(one.Tables) != 2 || one.Tables[1] != "visits" {
		t.Errorf("got %+v", one)
	}

	body, err = doAction(t, client, ctx, ActionListTables, nil)
	if err != nil {
		t.Fatalf("list_tables (all): %v", err)
	}
	var all struct {
		Tables map[string][]string `msgpack:"tables"`
	}
	if err := msgpack.Decode(body, &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all.Tables) != 2 || len(all.Tables["study_a"]) != 0 {
		t.Errorf("got %+v", all.Tables)
	}

	if _, err := doAction(t, client, ctx, ActionListTables, map[string]any{"schema_name": "nope"}); status.Code(err) != codes.NotFound {
		t.Errorf("unknown schema: %v", err)
	}
}

func TestEndpointsAction(t *testing.T) {
	client := startServer(t, newMemCatalog(), nil)

	desc, _ := proto.Marshal(&flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{"cohort", "participants"}})
	body, err := doAction(t, client, context.Background(), ActionEndpoints, map[string]any{
		"descriptor": string(desc),
		"parameters": map[string]any{
			"json_filters": `{"filters":[]}`,
			"column_ids":   []uint64{1, 1<<64 - 1},
		},
	})
	if err != nil {
		t.Fatalf("endpoints: %v", err)
	}

	var endpoints []string
	if err := msgpack.Decode(body, &endpoints); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(endpoints) != 1 {
		t.Fatalf("got %d endpoints", len(endpoints))
	}
	var ep flight.FlightEndpoint
	if err := proto.Unmarshal([]byte(endpoints[0]), &ep); err != nil {
		t.Fatalf("unmarshal endpoint: %v", err)
	}
	ticket, err := DecodeTicket(ep.Ticket.Ticket)
	if err != nil {
		t.Fatalf("DecodeTicket: %v", err)
	}
	if len(ticket.Columns) != 1 || ticket.Columns[0] != "age" {
		t.Errorf("columns = %v", ticket.Columns)
	}
	if string(ticket.Filters) != `{"filters":[]}` {
		t.Errorf("filters = %s", ticket.Filters)
	}
}

func TestMiscActions(t *testing.T) {
	client := startServer(t, newMemCatalog(), nil)
	ctx := context.Background()

	body, err := doAction(t, client, ctx, ActionCreateTransaction, map[string]any{"catalog_name": "opal"})
	if err != nil {
		t.Fatalf("create_transaction: %v", err)
	}
	tx, _ := msgpack.DecodeMap(body)
	if v, ok := tx["identifier"]; !ok || v != nil {
		t.Errorf("identifier = %v (present %v)", v, ok)
	}

	body, err = doAction(t, client, ctx, ActionCatalogVersion, nil)
	if err != nil {
		t.Fatalf("catalog_version: %v", err)
	}
	var version struct {
		CatalogVersion uint64 `msgpack:"catalog_version"`
	}
	if err := msgpack.Decode(body, &version); err != nil || version.CatalogVersion != 7 {
		t.Errorf("catalog_version = %+v, %v", version, err)
	}

	if _, err := doAction(t, client, ctx, "create_table", nil); status.Code(err) != codes.Unimplemented {
		t.Errorf("create_table: %v", err)
	}
}

func TestAuthentication(t *testing.T) {
	authenticator := auth.BearerAuth(func(token string) (string, error) {
		if token == "secret" {
			return "analyst", nil
		}
		return "", errors.New("bad token")
	})
	client := startServer(t, newMemCatalog(), authenticator)

	_, err := doAction(t, client, context.Background(), ActionCatalogVersion, nil)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("no token: %v", err)
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), HeaderAuthorization, "Bearer wrong")
	if _, err := doAction(t, client, ctx, ActionCatalogVersion, nil); status.Code(err) != codes.Unauthenticated {
		t.Errorf("wrong token: %v", err)
	}

	ctx = metadata.AppendToOutgoingContext(context.Background(), HeaderAuthorization, "Bearer secret")
	if _, err := doAction(t, client, ctx, ActionCatalogVersion, nil); err != nil {
		t.Errorf("valid token: %v", err)
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{context.Canceled, codes.Canceled},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{upstreamError(http.StatusForbidden), codes.PermissionDenied},
		{fmt.Errorf("table x: %w", upstreamError(http.StatusNotFound)), codes.NotFound},
		{upstreamError(http.StatusBadGateway), codes.Unavailable},
		{upstreamError(http.StatusInternalServerError), codes.Internal},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		if got := codeFor(tt.err); got != tt.want {
			t.Errorf("codeFor(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	st := status.Error(codes.NotFound, "kept")
	if statusFromError(st, "ignored") != st {
		t.Error("existing status should be kept")
	}
}
