// Package notebook reads the outputs a simtool recorded in its executed
// notebook.
//
// Tools record outputs as scrapbook scraps: cell outputs whose data bundle
// carries an "application/scrapbook.scrap.<encoder>+json" entry holding
// {name, data, encoder}. Display scraps carry rich data instead and are
// marked by metadata.scrapbook.display.
//
// Scraps with the "file" encoder name output files in the run workspace;
// those are the files a cache entry publishes alongside the tool's inputs.
package notebook
