// Package airport serves an Opal biobank server to DuckDB as a relational
// catalog over Apache Arrow Flight, using the protocol of the DuckDB
// Airport extension.
//
// Opal datasources become schemas and their value tables become tables.
// What a table holds depends on the presentation the catalog is built with:
//   - "values": one row per entity, an "_id" column then one column per variable
//   - "variables": one row per variable of the table, the data dictionary
//   - "administration": a single "system" schema listing taxonomies,
//     vocabularies, terms, databases, plugins and projects
//
// # Quick Start
//
//	cat, err := airport.NewOpalCatalog(airport.OpalConfig{
//	    URL:      "https://opal.example.org",
//	    Username: "administrator",
//	    Password: os.Getenv("OPAL_PASSWORD"),
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	config := airport.ServerConfig{Catalog: cat, Address: "localhost:50051"}
//	grpcServer := grpc.NewServer(airport.ServerOptions(config)...)
//	if err := airport.NewServer(grpcServer, config); err != nil {
//	    log.Fatal(err)
//	}
//	lis, _ := net.Listen("tcp", ":50051")
//	grpcServer.Serve(lis)
//
// Then, from DuckDB:
//
//	INSTALL airport FROM community;
//	LOAD airport;
//	ATTACH '' AS opal (TYPE airport, LOCATION 'grpc://localhost:50051');
//	SELECT * FROM opal.cnsim.cnsim1 LIMIT 10;
//
// # Server Lifecycle
//
// NewServer registers the Flight handlers on a caller-provided grpc.Server
// and does not manage listening or shutdown, so TLS, interceptors and
// graceful stop stay under the caller's control. The opal-airport command
// in cmd/ wires everything from a YAML file.
//
// # Caching
//
// Datasource listings and classifications are cached for OpalConfig.CacheTTL.
// Table schemas are kept until the catalog is invalidated, and rows are
// always read from Opal.
//
// # Memory Management
//
// Arrow uses manual reference counting. Record readers returned by table
// scans must be released by the caller.
package airport
